// Package trace collects the lifecycle events of arc registries.
package trace

import (
	"sync"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/log"
)

// MemoryTracer keeps every event in memory.
type MemoryTracer struct {
	mu     sync.Mutex
	events []arc.Event
}

func NewMemoryTracer() *MemoryTracer {
	return &MemoryTracer{}
}

func (m *MemoryTracer) OnEvent(ev arc.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events. With kinds, only events
// of those kinds are returned.
func (m *MemoryTracer) Events(kinds ...arc.EventKind) []arc.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filter(m.events, kinds)
}

// Reset drops all recorded events.
func (m *MemoryTracer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

func filter(events []arc.Event, kinds []arc.EventKind) []arc.Event {
	out := make([]arc.Event, 0, len(events))
	for _, ev := range events {
		if len(kinds) == 0 || hasKind(kinds, ev.Kind) {
			out = append(out, ev)
		}
	}
	return out
}

func hasKind(kinds []arc.EventKind, k arc.EventKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// LogTracer writes every event to a logger at TRACE level.
type LogTracer struct {
	Logger *log.Logger
}

func (LogTracer) String() string {
	return "trace"
}

func (l LogTracer) OnEvent(ev arc.Event) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Trace(l, ev.Kind.String(),
		"seq", ev.Seq,
		"id", ev.ID,
		"label", ev.Label,
		"strong", ev.Strong,
		"weak", ev.Weak)
}

type multi []arc.Tracer

func (m multi) OnEvent(ev arc.Event) {
	for _, t := range m {
		t.OnEvent(ev)
	}
}

// Multi fans events out to several tracers in order. Nil tracers are skipped.
func Multi(tracers ...arc.Tracer) arc.Tracer {
	var m multi
	for _, t := range tracers {
		if t != nil {
			m = append(m, t)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}
