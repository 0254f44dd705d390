package arc

import "github.com/arcmem/arcmem/std/types/optional"

// Weak observes an object without keeping it alive. It holds the
// referent's id and checks liveness through the registry on every read,
// so it can never hand out a torn down payload.
type Weak[T any] struct {
	noCopy noCopy
	reg    *Registry
	id     ID
}

// WeakOf returns a weak handle to the referent of src.
func WeakOf[T any](src *Strong[T]) *Weak[T] {
	w := &Weak[T]{}
	w.Bind(src)
	return w
}

// Bind observes the referent of src. A nil or empty src unbinds w.
func (w *Weak[T]) Bind(src *Strong[T]) {
	var reg *Registry
	var id ID
	if src != nil && src.obj != nil {
		reg, id = src.obj.reg, src.obj.id
		reg.retainWeak(src.obj)
	}
	w.swap(reg, id)
}

// BindWeak observes whatever src observes, even if it is already gone.
func (w *Weak[T]) BindWeak(src *Weak[T]) {
	var reg *Registry
	var id ID
	if src != nil && src.reg != nil {
		reg, id = src.reg, src.id
		reg.retainWeakID(id)
	}
	w.swap(reg, id)
}

func (w *Weak[T]) swap(reg *Registry, id ID) {
	prevReg, prevID := w.reg, w.id
	w.reg, w.id = reg, id
	if prevReg != nil {
		prevReg.releaseWeakID(prevID)
	}
}

// Unbind stops observing. It never affects the referent's lifetime.
func (w *Weak[T]) Unbind() {
	w.swap(nil, 0)
}

// Get returns the payload while the referent is live, None afterwards.
func (w *Weak[T]) Get() (ret optional.Optional[T]) {
	if w.reg == nil {
		return ret
	}
	w.reg.read(w.id, func(o *object) {
		ret.Set(*payload[T](o))
	})
	return ret
}

// Upgrade returns a new strong handle if the referent is still live,
// or nil. The caller owns the returned handle.
func (w *Weak[T]) Upgrade() *Strong[T] {
	if w.reg == nil {
		return nil
	}
	var s *Strong[T]
	w.reg.read(w.id, func(o *object) {
		o.strong++
		w.reg.emit(EventRetain, o.id, o.label, o.strong, o.weak)
		s = &Strong[T]{obj: o}
	})
	return s
}

// IsBound reports whether w observes an id, live or not.
func (w *Weak[T]) IsBound() bool {
	return w.reg != nil
}

// Alive reports whether the referent is still live.
func (w *Weak[T]) Alive() bool {
	if w.reg == nil {
		return false
	}
	state, _ := w.reg.read(w.id, nil)
	return state == StateLive
}

// ID returns the observed id, or zero when w is empty.
func (w *Weak[T]) ID() ID {
	return w.id
}

func (w *Weak[T]) dropMember() {
	w.Unbind()
}

func (w *Weak[T]) memberRefs(yield func(RefKind, ID)) {
	if w.reg != nil {
		yield(RefWeak, w.id)
	}
}
