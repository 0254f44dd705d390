package arc

import (
	"fmt"

	"github.com/arcmem/arcmem/std/types/optional"
)

// Closure is a function value together with the references it captured.
// It is the member type for callbacks stored in a payload: a strong
// capture of the payload's own object is a reference cycle, a weak or
// unowned capture is not.
//
//	type Person struct {
//		Name      string
//		Introduce arc.Closure[string]
//	}
//
//	arc.CaptureUnowned(&p.Get().Introduce, p, func(self *Person) string {
//		return "My name is " + self.Name + "."
//	})
type Closure[R any] struct {
	noCopy noCopy
	caps   []Capture
	call   func(*Captures) R
}

// Capture is one entry of a capture list, created by StrongRef, WeakRef
// or UnownedRef. The closure it is passed to owns it.
type Capture interface {
	clone() Capture
	release()
	ref() (RefKind, ID)
	// enter prepares the entry for one call. leave may be nil.
	enter() (load func() (any, bool), leave func())
}

// Captures gives a running closure access to its capture list.
// Weak entries that were live when the call started stay live until it
// returns.
type Captures struct {
	loads []func() (any, bool)
}

// Len returns the number of entries.
func (in *Captures) Len() int {
	return len(in.loads)
}

// Load returns entry i, or None if it is a weak reference whose
// referent is gone. Loading a dangling unowned entry is fatal.
func Load[T any](in *Captures, i int) (ret optional.Optional[T]) {
	v, ok := in.loads[i]()
	if !ok {
		return ret
	}
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("arc: capture %d holds %T", i, v))
	}
	ret.Set(t)
	return ret
}

// Get is Load for entries that must be present. A weak entry whose
// referent is gone is fatal, like a forced unwrap.
func Get[T any](in *Captures, i int) T {
	v, ok := Load[T](in, i).Get()
	if !ok {
		fatal(nil, ErrEmptyHandle, 0, "")
	}
	return v
}

// StrongRef captures the referent of src strongly.
func StrongRef[T any](src *Strong[T]) Capture {
	return &strongCapture[T]{h: src.Clone()}
}

// WeakRef captures the referent of src weakly.
func WeakRef[T any](src *Strong[T]) Capture {
	return &weakCapture[T]{w: WeakOf(src)}
}

// UnownedRef captures the referent of src without a count.
func UnownedRef[T any](src *Strong[T]) Capture {
	return &unownedCapture[T]{u: UnownedOf(src)}
}

// CaptureList sets dst to fn with the given capture list:
//
//	arc.CaptureList(&c, func(in *arc.Captures) string {
//		x := arc.Load[*Value](in, 0)  // weak, may be None
//		y := arc.Get[*Value](in, 1)   // unowned, fatal if gone
//		...
//	}, arc.WeakRef(x), arc.UnownedRef(y))
func CaptureList[R any](dst *Closure[R], fn func(*Captures) R, list ...Capture) {
	dst.set(list, fn)
}

// CaptureStrong sets dst to fn with src captured strongly.
func CaptureStrong[T, R any](dst *Closure[R], src *Strong[T], fn func(T) R) {
	CaptureList(dst, func(in *Captures) R {
		return fn(Get[T](in, 0))
	}, StrongRef(src))
}

// CaptureWeak sets dst to fn with src captured weakly. The referent is
// kept alive for the duration of each call. Once it is gone, calls return
// orElse(), or the zero value of R when orElse is nil.
func CaptureWeak[T, R any](dst *Closure[R], src *Strong[T], fn func(T) R, orElse func() R) {
	CaptureList(dst, func(in *Captures) R {
		self, ok := Load[T](in, 0).Get()
		if ok {
			return fn(self)
		}
		if orElse != nil {
			return orElse()
		}
		var zero R
		return zero
	}, WeakRef(src))
}

// CaptureUnowned sets dst to fn with src captured unowned. Calling dst
// after the referent is gone is fatal.
func CaptureUnowned[T, R any](dst *Closure[R], src *Strong[T], fn func(T) R) {
	CaptureList(dst, func(in *Captures) R {
		return fn(Get[T](in, 0))
	}, UnownedRef(src))
}

func (c *Closure[R]) set(caps []Capture, call func(*Captures) R) {
	prev := c.caps
	c.caps, c.call = caps, call
	if c.caps == nil {
		// an empty capture list still marks c as bound
		c.caps = []Capture{}
	}
	for _, cp := range prev {
		cp.release()
	}
}

// Bind makes c share src's function. The captured references are copied
// with their own kinds: strong captures are retained once more.
func (c *Closure[R]) Bind(src *Closure[R]) {
	if src == nil || src.caps == nil {
		c.Unbind()
		return
	}
	caps := make([]Capture, 0, len(src.caps))
	for _, cp := range src.caps {
		caps = append(caps, cp.clone())
	}
	c.set(caps, src.call)
}

// Unbind drops the function and its captured references.
func (c *Closure[R]) Unbind() {
	prev := c.caps
	c.caps, c.call = nil, nil
	for _, cp := range prev {
		cp.release()
	}
}

// IsBound reports whether c holds a function.
func (c *Closure[R]) IsBound() bool {
	return c.caps != nil
}

// Call runs the function. Calling an empty closure is fatal.
func (c *Closure[R]) Call() R {
	if c.caps == nil {
		fatal(nil, ErrEmptyHandle, 0, "")
	}
	in := &Captures{loads: make([]func() (any, bool), 0, len(c.caps))}
	for _, cp := range c.caps {
		load, leave := cp.enter()
		if leave != nil {
			defer leave()
		}
		in.loads = append(in.loads, load)
	}
	return c.call(in)
}

func (c *Closure[R]) dropMember() {
	c.Unbind()
}

func (c *Closure[R]) memberRefs(yield func(RefKind, ID)) {
	for _, cp := range c.caps {
		if kind, id := cp.ref(); id != 0 {
			yield(kind, id)
		}
	}
}

type strongCapture[T any] struct {
	h *Strong[T]
}

func (c *strongCapture[T]) clone() Capture {
	return &strongCapture[T]{h: c.h.Clone()}
}

func (c *strongCapture[T]) release() {
	c.h.Unbind()
}

func (c *strongCapture[T]) ref() (RefKind, ID) {
	return RefStrong, c.h.ID()
}

func (c *strongCapture[T]) enter() (func() (any, bool), func()) {
	return func() (any, bool) { return c.h.Get(), true }, nil
}

type weakCapture[T any] struct {
	w *Weak[T]
}

func (c *weakCapture[T]) clone() Capture {
	w := &Weak[T]{}
	w.BindWeak(c.w)
	return &weakCapture[T]{w: w}
}

func (c *weakCapture[T]) release() {
	c.w.Unbind()
}

func (c *weakCapture[T]) ref() (RefKind, ID) {
	return RefWeak, c.w.ID()
}

func (c *weakCapture[T]) enter() (func() (any, bool), func()) {
	self := c.w.Upgrade()
	if self == nil {
		return func() (any, bool) { return nil, false }, nil
	}
	return func() (any, bool) { return self.Get(), true }, self.Release
}

type unownedCapture[T any] struct {
	u *Unowned[T]
}

func (c *unownedCapture[T]) clone() Capture {
	u := &Unowned[T]{}
	u.BindUnowned(c.u)
	return &unownedCapture[T]{u: u}
}

func (c *unownedCapture[T]) release() {
	c.u.Unbind()
}

func (c *unownedCapture[T]) ref() (RefKind, ID) {
	return RefUnowned, c.u.ID()
}

func (c *unownedCapture[T]) enter() (func() (any, bool), func()) {
	return func() (any, bool) { return c.u.Get(), true }, nil
}
