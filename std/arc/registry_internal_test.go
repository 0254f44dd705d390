package arc

import (
	"testing"

	"github.com/arcmem/arcmem/std/log"
	"github.com/stretchr/testify/require"
)

func quietRegistry() *Registry {
	return NewRegistry(Options{Logger: log.NewDiscard()})
}

func recoverFatal(t *testing.T, fn func()) (fe *FatalError) {
	defer func() {
		var ok bool
		fe, ok = AsFatal(recover())
		require.True(t, ok)
	}()
	fn()
	return nil
}

func TestReleaseUnderflow(t *testing.T) {
	r := quietRegistry()
	h := Alloc(r, "x", nil)
	w := WeakOf(h)
	o := h.obj
	h.Release()
	require.Equal(t, StateTornDown, o.state)

	// a stale copy of the handle releases a second time
	fe := recoverFatal(t, func() { r.release(o) })
	require.ErrorIs(t, fe, ErrCountUnderflow)
	require.Equal(t, o.id, fe.ID)
	require.Equal(t, "x", fe.Label)

	w.Unbind()
	require.Equal(t, 0, r.Len())
}

func TestWeakUnderflow(t *testing.T) {
	r := quietRegistry()
	h := Alloc(r, "x", nil)
	defer h.Release()

	fe := recoverFatal(t, func() { r.releaseWeak(h.obj) })
	require.ErrorIs(t, fe, ErrWeakUnderflow)
	require.Equal(t, int32(0), h.obj.weak)

	fe = recoverFatal(t, func() { r.releaseWeakID(9999) })
	require.ErrorIs(t, fe, ErrWeakUnderflow)
}

func TestRetainDead(t *testing.T) {
	r := quietRegistry()
	var o *object
	var fe *FatalError
	h := Alloc(r, "phoenix", func() {
		fe = recoverFatal(t, func() { r.retain(o) })
	})
	o = h.obj
	h.Release()

	require.NotNil(t, fe)
	require.ErrorIs(t, fe, ErrRetainDead)
	require.Equal(t, "phoenix", fe.Label)
	require.Equal(t, 0, r.Len())
}

func TestRetainWeakReclaimed(t *testing.T) {
	r := quietRegistry()
	h := Alloc(r, 1, nil)
	id := h.ID()
	h.Release()

	fe := recoverFatal(t, func() { r.retainWeakID(id) })
	require.ErrorIs(t, fe, ErrUseAfterFree)
}

func TestDuplicateID(t *testing.T) {
	r := quietRegistry()
	h := Alloc(r, "x", nil)
	defer h.Release()

	dup := &object{reg: r, id: h.ID(), label: "impostor", strong: 1}
	fe := recoverFatal(t, func() { r.insert(dup) })
	require.ErrorIs(t, fe, ErrDuplicateID)
	require.Equal(t, "impostor", fe.Label)
	require.Same(t, h.obj, r.lookup(h.ID()))
}

func TestFatalIsTraced(t *testing.T) {
	var kinds []EventKind
	r := NewRegistry(Options{
		Logger: log.NewDiscard(),
		Tracer: TracerFunc(func(ev Event) { kinds = append(kinds, ev.Kind) }),
	})
	h := Alloc(r, 1, nil)
	defer h.Release()
	recoverFatal(t, func() { r.releaseWeak(h.obj) })
	require.Equal(t, []EventKind{EventAlloc, EventFatal}, kinds)
}

func TestBlocksRecycled(t *testing.T) {
	r := quietRegistry()
	for i := 0; i < 10; i++ {
		h := Alloc(r, i, nil)
		require.Equal(t, ID(i+1), h.ID())
		require.Equal(t, StateLive, h.obj.state)
		require.Equal(t, int32(0), h.obj.weak)
		h.Release()
	}
	// sync.Pool may drop values at any time, so only an upper bound holds
	require.LessOrEqual(t, r.blocks.Made(), uint64(10))
}

func TestStripeSelection(t *testing.T) {
	s := newStripedLocker(8)
	require.Len(t, s.mu, 8)
	require.Same(t, s.stripe(42), s.stripe(42))

	seen := map[int]bool{}
	for id := ID(1); id <= 256; id++ {
		for i := range s.mu {
			if &s.mu[i] == s.stripe(id) {
				seen[i] = true
			}
		}
	}
	require.Greater(t, len(seen), 1)

	require.Len(t, newStripedLocker(0).mu, DefaultStripes)
}
