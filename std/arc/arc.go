// Package arc implements automatic reference counting for Go values.
//
// A Registry owns the bookkeeping of every object it allocates. Client code
// holds objects through handles:
//
//   - Strong keeps its referent alive. The object is torn down as soon as
//     the last Strong handle is unbound.
//   - Weak observes the referent without keeping it alive. Get returns
//     None once the referent has been torn down.
//   - Unowned assumes the referent outlives it. Get after teardown is a
//     fatal error.
//
// Teardown runs the object's Deinit method and teardown hook, then unbinds
// every handle stored inside the object, which may cascade into further
// teardowns. There is no cycle collector: objects that strongly reference
// each other leak unless one edge of the cycle is Weak or Unowned.
//
// Handles must not be copied by value. Use Bind or Clone instead.
package arc

import (
	"fmt"
	"strconv"
)

// ID identifies one allocation. IDs are never reused within a registry.
type ID uint64

func (id ID) String() string {
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// State is the lifecycle stage of an object.
// Transitions are monotonic: Live -> TornDown -> Reclaimed.
type State uint8

const (
	StateLive State = iota
	StateTornDown
	StateReclaimed
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateTornDown:
		return "torn-down"
	case StateReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Deinitializer is implemented by payloads that want a destructor.
// Deinit runs exactly once, before the per-object teardown hook and
// before the payload's member handles are unbound.
type Deinitializer interface {
	Deinit()
}

// object is the bookkeeping block of one allocation.
// Counts and state are guarded by the registry's stripe lock for id.
type object struct {
	reg    *Registry
	id     ID
	label  string
	strong int32
	weak   int32
	state  State
	// set while teardown hooks and member drops are running
	finalizing bool
	// *T for an allocation of T
	value any
	hooks []func()
}

func (o *object) reset() {
	*o = object{}
}

func labelOf(v any) (label string) {
	label = fmt.Sprintf("%T", v)
	if s, ok := v.(fmt.Stringer); ok {
		// a nil receiver may not support String
		defer func() { recover() }()
		label = s.String()
	}
	return label
}

// payload returns the typed pointer stored in the block.
func payload[T any](o *object) *T {
	return o.value.(*T)
}
