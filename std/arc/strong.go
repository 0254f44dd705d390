package arc

// noCopy makes `go vet` flag handles copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Strong is an owning reference. Every bound Strong accounts for exactly
// one unit of its referent's strong count. The zero value is an empty
// handle, ready to use as a struct field.
//
// A Strong stored in an allocated payload is unbound automatically when
// the payload is torn down.
type Strong[T any] struct {
	noCopy noCopy
	obj    *object
}

// Bind makes s reference the same object as src. The new referent is
// retained before the old one is released, so rebinding to the current
// referent leaves the count unchanged. A nil or empty src unbinds s.
func (s *Strong[T]) Bind(src *Strong[T]) {
	var next *object
	if src != nil {
		next = src.obj
	}
	if next != nil {
		next.reg.retain(next)
	}

	prev := s.obj
	s.obj = next
	if prev != nil {
		prev.reg.release(prev)
	}
}

// Unbind releases the referent, if any, and leaves s empty.
func (s *Strong[T]) Unbind() {
	prev := s.obj
	s.obj = nil
	if prev != nil {
		prev.reg.release(prev)
	}
}

// Release is Unbind, named for scope exit:
//
//	h := arc.New(&Person{Name: "yagom"}, nil)
//	defer h.Release()
func (s *Strong[T]) Release() {
	s.Unbind()
}

// Clone returns a new handle to the same referent.
func (s *Strong[T]) Clone() *Strong[T] {
	c := &Strong[T]{}
	c.Bind(s)
	return c
}

// Get returns the payload. Dereferencing an empty handle is fatal.
func (s *Strong[T]) Get() T {
	if s.obj == nil {
		fatal(nil, ErrEmptyHandle, 0, "")
	}
	return *payload[T](s.obj)
}

// IsBound reports whether s references an object.
func (s *Strong[T]) IsBound() bool {
	return s.obj != nil
}

// ID returns the referent's id, or zero when s is empty.
func (s *Strong[T]) ID() ID {
	if s.obj == nil {
		return 0
	}
	return s.obj.id
}

// Registry returns the referent's registry, or nil when s is empty.
func (s *Strong[T]) Registry() *Registry {
	if s.obj == nil {
		return nil
	}
	return s.obj.reg
}

// Same reports whether both handles reference the same object.
func (s *Strong[T]) Same(o *Strong[T]) bool {
	return s.obj != nil && o != nil && s.obj == o.obj
}

func (s *Strong[T]) dropMember() {
	s.Unbind()
}

func (s *Strong[T]) memberRefs(yield func(RefKind, ID)) {
	if s.obj != nil {
		yield(RefStrong, s.obj.id)
	}
}
