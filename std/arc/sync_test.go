package arc_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arcmem/arcmem/std/arc"
	tu "github.com/arcmem/arcmem/std/utils/testutils"
	"github.com/stretchr/testify/require"
)

type counter struct {
	torn *atomic.Int32
}

func (c counter) Deinit() {
	c.torn.Add(1)
}

func TestSynchronizedClones(t *testing.T) {
	tu.SetT(t)
	r := newRegistry(func(o *arc.Options) {
		o.Synchronized = true
		o.Stripes = 4
	})
	require.True(t, r.Synchronized())

	torn := &atomic.Int32{}
	const objects = 16
	const workers = 8

	roots := make([]*arc.Strong[counter], objects)
	for i := range roots {
		roots[i] = arc.Alloc(r, counter{torn: torn}, nil)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				root := roots[n%objects]
				c := root.Clone()
				weak := arc.WeakOf(c)
				if up := weak.Upgrade(); up != nil {
					up.Release()
				}
				weak.Unbind()
				c.Release()
			}
		}()
	}
	wg.Wait()

	for _, root := range roots {
		require.Equal(t, int32(1), strongCount(t, r, root.ID()))
	}
	require.Equal(t, int32(0), torn.Load())

	for _, root := range roots {
		root.Release()
	}
	require.Equal(t, int32(objects), torn.Load())
	require.Equal(t, 0, r.Len())
	require.Equal(t, arc.Stats{Allocated: objects, Reclaimed: objects}, r.Stats())
}

func TestSynchronizedLastRelease(t *testing.T) {
	tu.SetT(t)
	r := newRegistry(func(o *arc.Options) { o.Synchronized = true })
	torn := &atomic.Int32{}

	for round := 0; round < 20; round++ {
		root := arc.Alloc(r, counter{torn: torn}, nil)
		clones := make([]*arc.Strong[counter], 8)
		for i := range clones {
			clones[i] = root.Clone()
		}
		root.Release()

		var wg sync.WaitGroup
		for _, c := range clones {
			wg.Add(1)
			go func(c *arc.Strong[counter]) {
				defer wg.Done()
				c.Release()
			}(c)
		}
		wg.Wait()
		require.Equal(t, int32(round+1), torn.Load())
	}
	require.Equal(t, 0, r.Len())
}

func TestTracerOrder(t *testing.T) {
	tu.SetT(t)
	var events []arc.Event
	r := newRegistry(func(o *arc.Options) {
		o.Tracer = arc.TracerFunc(func(ev arc.Event) { events = append(events, ev) })
	})

	h := arc.Alloc(r, "traced", nil)
	id := h.ID()
	w := arc.WeakOf(h)
	c := h.Clone()
	c.Release()
	h.Release()
	w.Unbind()

	var kinds []arc.EventKind
	for i, ev := range events {
		require.Equal(t, uint64(i+1), ev.Seq)
		require.Equal(t, id, ev.ID)
		require.Equal(t, "string", ev.Label)
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []arc.EventKind{
		arc.EventAlloc,
		arc.EventRetainWeak,
		arc.EventRetain,
		arc.EventRelease,
		arc.EventRelease,
		arc.EventTearDown,
		arc.EventReleaseWeak,
		arc.EventReclaim,
	}, kinds)

	require.Equal(t, int32(2), events[2].Strong)
	require.Equal(t, int32(1), events[2].Weak)
	require.Equal(t, int32(0), events[7].Weak)
}

func TestEventKindNames(t *testing.T) {
	for k := arc.EventAlloc; k <= arc.EventFatal; k++ {
		parsed, ok := arc.ParseEventKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}
	_, ok := arc.ParseEventKind("bogus")
	require.False(t, ok)
	require.Equal(t, "unknown", arc.EventKind(99).String())
}
