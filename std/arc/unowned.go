package arc

// Unowned references an object that is known to outlive it, such as the
// owner of a credit card or the company of its CEO. It takes no count.
// Reading it after the referent was torn down is fatal.
type Unowned[T any] struct {
	noCopy noCopy
	reg    *Registry
	id     ID
}

// UnownedOf returns an unowned handle to the referent of src.
func UnownedOf[T any](src *Strong[T]) *Unowned[T] {
	u := &Unowned[T]{}
	u.Bind(src)
	return u
}

// Bind references the referent of src. A nil or empty src unbinds u.
func (u *Unowned[T]) Bind(src *Strong[T]) {
	if src == nil || src.obj == nil {
		u.Unbind()
		return
	}
	u.reg, u.id = src.obj.reg, src.obj.id
}

// BindUnowned references whatever src references.
func (u *Unowned[T]) BindUnowned(src *Unowned[T]) {
	if src == nil {
		u.Unbind()
		return
	}
	u.reg, u.id = src.reg, src.id
}

// Unbind leaves u empty.
func (u *Unowned[T]) Unbind() {
	u.reg, u.id = nil, 0
}

// Get returns the payload. It is fatal if the referent is gone or u was
// never bound.
func (u *Unowned[T]) Get() T {
	if u.reg == nil {
		fatal(nil, ErrEmptyHandle, 0, "")
	}
	var v T
	state, label := u.reg.read(u.id, func(o *object) {
		v = *payload[T](o)
	})
	if state != StateLive {
		fatal(u.reg, ErrUseAfterFree, u.id, label)
	}
	return v
}

// Strong returns a new strong handle to the referent. Like Get, it is
// fatal if the referent is gone or u was never bound.
func (u *Unowned[T]) Strong() *Strong[T] {
	if u.reg == nil {
		fatal(nil, ErrEmptyHandle, 0, "")
	}
	var s *Strong[T]
	state, label := u.reg.read(u.id, func(o *object) {
		o.strong++
		u.reg.emit(EventRetain, o.id, o.label, o.strong, o.weak)
		s = &Strong[T]{obj: o}
	})
	if state != StateLive {
		fatal(u.reg, ErrUseAfterFree, u.id, label)
	}
	return s
}

// IsBound reports whether u references an id.
func (u *Unowned[T]) IsBound() bool {
	return u.reg != nil
}

// ID returns the referenced id, or zero when u is empty.
func (u *Unowned[T]) ID() ID {
	return u.id
}

func (u *Unowned[T]) dropMember() {
	u.Unbind()
}

func (u *Unowned[T]) memberRefs(yield func(RefKind, ID)) {
	if u.reg != nil {
		yield(RefUnowned, u.id)
	}
}
