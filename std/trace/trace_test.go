package trace_test

import (
	"bytes"
	"testing"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/log"
	"github.com/arcmem/arcmem/std/trace"
	"github.com/stretchr/testify/require"
)

func lifecycle(tracer arc.Tracer) arc.ID {
	r := arc.NewRegistry(arc.Options{Logger: log.NewDiscard(), Tracer: tracer})
	h := arc.Alloc(r, "subject", nil)
	w := arc.WeakOf(h)
	h.Release()
	w.Unbind()
	return 1
}

func TestMemoryTracer(t *testing.T) {
	m := trace.NewMemoryTracer()
	id := lifecycle(m)

	events := m.Events()
	require.Len(t, events, 6)
	for _, ev := range events {
		require.Equal(t, id, ev.ID)
	}

	reclaims := m.Events(arc.EventTearDown, arc.EventReclaim)
	require.Len(t, reclaims, 2)
	require.Equal(t, arc.EventTearDown, reclaims[0].Kind)
	require.Equal(t, arc.EventReclaim, reclaims[1].Kind)
	require.Equal(t, uint64(6), reclaims[1].Seq)

	m.Reset()
	require.Empty(t, m.Events())
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewText(&buf)
	logger.SetLevel(log.LevelTrace)

	lifecycle(trace.LogTracer{Logger: logger})
	out := buf.String()
	require.Contains(t, out, "level=TRACE")
	require.Contains(t, out, "msg=alloc")
	require.Contains(t, out, "msg=reclaim")
	require.Contains(t, out, "tag=trace")
	require.Contains(t, out, "label=string")
}

func TestMulti(t *testing.T) {
	a, b := trace.NewMemoryTracer(), trace.NewMemoryTracer()
	require.Nil(t, trace.Multi(nil, nil))
	require.Same(t, a, trace.Multi(nil, a))

	lifecycle(trace.Multi(a, nil, b))
	require.Equal(t, a.Events(), b.Events())
	require.Len(t, a.Events(), 6)
}
