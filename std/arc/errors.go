package arc

import (
	"errors"
	"fmt"

	"github.com/arcmem/arcmem/std/log"
)

// ErrCountUnderflow is raised when an object is released more often than retained.
var ErrCountUnderflow = errors.New("arc: strong count underflow")

// ErrWeakUnderflow is raised when a weak reference is released twice.
var ErrWeakUnderflow = errors.New("arc: weak count underflow")

// ErrRetainDead is raised when a strong reference is taken to a torn down object.
var ErrRetainDead = errors.New("arc: retain of a deallocated object")

// ErrUseAfterFree is raised when an unowned reference outlives its referent.
var ErrUseAfterFree = errors.New("arc: unowned reference used after deallocation")

// ErrDuplicateID is raised when an id is registered while still live.
var ErrDuplicateID = errors.New("arc: object id already registered")

// ErrEmptyHandle is raised when an unbound handle is dereferenced.
var ErrEmptyHandle = errors.New("arc: empty handle dereferenced")

// FatalError is the panic value of every broken invariant.
// None of them are recoverable: the program holding the handle is wrong.
type FatalError struct {
	Err   error
	ID    ID
	Label string
}

func (e *FatalError) Error() string {
	if e.ID == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: object %s (%s)", e.Err, e.ID, e.Label)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// AsFatal extracts a FatalError from a recovered panic value.
func AsFatal(r any) (*FatalError, bool) {
	err, ok := r.(error)
	if !ok {
		return nil, false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// fatal logs the violated invariant and aborts the current goroutine.
// r may be nil when the handle was never bound to any registry.
func fatal(r *Registry, err error, id ID, label string) {
	fe := &FatalError{Err: err, ID: id, Label: label}
	if r != nil {
		if want := r.expected.Load(); want != nil && errors.Is(err, *want) {
			r.log.Debug(r, "Expected invariant violation", "err", err, "id", id, "label", label)
		} else {
			r.log.Fatal(r, "Reference counting invariant violated", "err", err, "id", id, "label", label)
		}
		r.emit(EventFatal, id, label, 0, 0)
	} else {
		log.Fatal(nil, "Reference counting invariant violated", "err", err)
	}
	panic(fe)
}

// Expect runs fn and recovers the fatal error it raises, if any. Fatal
// errors of r matching want are logged at DEBUG level instead of FATAL.
// Other panics are propagated. Expect is meant for tests and tools that
// drive r from a single goroutine.
func (r *Registry) Expect(want error, fn func()) (fe *FatalError) {
	prev := r.expected.Swap(&want)
	defer func() {
		r.expected.Store(prev)
		if rec := recover(); rec != nil {
			var ok bool
			if fe, ok = AsFatal(rec); !ok {
				panic(rec)
			}
		}
	}()
	fn()
	return nil
}
