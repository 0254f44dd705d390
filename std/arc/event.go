package arc

// EventKind is the kind of a lifecycle event.
type EventKind uint8

const (
	EventAlloc EventKind = iota + 1
	EventRetain
	EventRelease
	EventRetainWeak
	EventReleaseWeak
	EventTearDown
	EventReclaim
	EventFatal
)

var eventKindNames = map[EventKind]string{
	EventAlloc:       "alloc",
	EventRetain:      "retain",
	EventRelease:     "release",
	EventRetainWeak:  "retain-weak",
	EventReleaseWeak: "release-weak",
	EventTearDown:    "teardown",
	EventReclaim:     "reclaim",
	EventFatal:       "fatal",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, name := range eventKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Event is one change of an object's lifecycle bookkeeping.
// Strong and Weak are the counts after the change.
type Event struct {
	Seq    uint64
	Kind   EventKind
	ID     ID
	Label  string
	Strong int32
	Weak   int32
}

// Tracer receives every event of a registry, synchronously and in order
// for any single object. Tracers must not call back into handles.
type Tracer interface {
	OnEvent(ev Event)
}

// TracerFunc adapts a function to a Tracer.
type TracerFunc func(ev Event)

func (f TracerFunc) OnEvent(ev Event) {
	f(ev)
}
