package arc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arcmem/arcmem/std/log"
	"github.com/arcmem/arcmem/std/types/sync_pool"
)

// Options configures a Registry.
type Options struct {
	// Synchronized guards counts with striped mutexes so handles to the
	// same objects may be used from several goroutines. Registries are
	// single-goroutine by default.
	Synchronized bool
	// Stripes is the number of count locks of a synchronized registry.
	Stripes int
	// Tracer receives every lifecycle event.
	Tracer Tracer
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Stats is a point-in-time view of a registry's counters.
type Stats struct {
	// Allocated counts every allocation ever made.
	Allocated uint64
	// Live counts objects with a strong count above zero.
	Live uint64
	// Zombies counts torn down objects still held by weak references.
	Zombies uint64
	// Reclaimed counts objects whose bookkeeping was released.
	Reclaimed uint64
}

var registrySeq atomic.Uint64

// Registry allocates objects and reclaims their bookkeeping once both
// counts reach zero. Reclaimed blocks are recycled under fresh ids.
type Registry struct {
	name   string
	sync   bool
	log    *log.Logger
	tracer Tracer

	counts countLocker
	table  tableLocker

	objects map[ID]*object
	lastID  ID
	blocks  sync_pool.SyncPool[*object]

	// sentinel of the fatal error an Expect call is waiting for
	expected atomic.Pointer[error]

	seq       atomic.Uint64
	allocated atomic.Uint64
	tornDown  atomic.Uint64
	reclaimed atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		name:    fmt.Sprintf("registry-%d", registrySeq.Add(1)),
		sync:    opts.Synchronized,
		log:     opts.Logger,
		tracer:  opts.Tracer,
		objects: make(map[ID]*object),
		blocks: sync_pool.New(
			func() *object { return &object{} },
			func(o *object) { o.reset() }),
	}
	if r.log == nil {
		r.log = log.Default()
	}
	if opts.Synchronized {
		r.counts = newStripedLocker(opts.Stripes)
		r.table = &sync.RWMutex{}
	} else {
		r.counts = nopLocker{}
		r.table = nopLocker{}
	}
	return r
}

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(NewRegistry(Options{}))
}

// Default returns the process-wide registry used by New.
func Default() *Registry {
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry and returns the previous one.
func SetDefault(r *Registry) (prev *Registry) {
	return defaultRegistry.Swap(r)
}

func (r *Registry) String() string {
	return r.name
}

// Synchronized reports whether the registry may be shared between goroutines.
func (r *Registry) Synchronized() bool {
	return r.sync
}

// Alloc stores value in r with a strong count of one and returns the
// handle owning that count. teardown may be nil. If value (or a pointer
// to it) implements Deinitializer, Deinit runs before teardown.
//
// Handles reachable from value through struct fields, arrays, slices,
// map values and pointers belong to the object and are unbound after
// teardown. Pointers inside value must therefore not lead into the
// payload of another object.
func Alloc[T any](r *Registry, value T, teardown func()) *Strong[T] {
	p := new(T)
	*p = value

	var hooks []func()
	if _, ok := any(value).(Deinitializer); ok {
		hooks = append(hooks, func() { any(*p).(Deinitializer).Deinit() })
	} else if _, ok := any(p).(Deinitializer); ok {
		hooks = append(hooks, func() { any(p).(Deinitializer).Deinit() })
	}
	if teardown != nil {
		hooks = append(hooks, teardown)
	}

	return &Strong[T]{obj: r.alloc(p, labelOf(value), hooks)}
}

// New is Alloc on the default registry.
func New[T any](value T, teardown func()) *Strong[T] {
	return Alloc(Default(), value, teardown)
}

func (r *Registry) alloc(value any, label string, hooks []func()) *object {
	o := r.blocks.Get()
	o.reg = r
	o.label = label
	o.strong = 1
	o.state = StateLive
	o.value = value
	o.hooks = hooks

	r.table.Lock()
	r.lastID++
	o.id = r.lastID
	r.table.Unlock()
	r.insert(o)

	r.allocated.Add(1)
	r.emit(EventAlloc, o.id, label, 1, 0)
	r.log.Debug(r, "Object allocated", "id", o.id, "label", label)
	return o
}

func (r *Registry) insert(o *object) {
	r.table.Lock()
	if _, dup := r.objects[o.id]; dup {
		r.table.Unlock()
		fatal(r, ErrDuplicateID, o.id, o.label)
	}
	r.objects[o.id] = o
	r.table.Unlock()
}

func (r *Registry) lookup(id ID) *object {
	r.table.RLock()
	defer r.table.RUnlock()
	return r.objects[id]
}

func (r *Registry) emit(kind EventKind, id ID, label string, strong, weak int32) {
	traced := r.log.Enabled(log.LevelTrace)
	if r.tracer == nil && !traced {
		return
	}
	ev := Event{
		Seq:    r.seq.Add(1),
		Kind:   kind,
		ID:     id,
		Label:  label,
		Strong: strong,
		Weak:   weak,
	}
	if traced {
		r.log.Trace(r, "Lifecycle event", "kind", kind, "id", id, "strong", strong, "weak", weak)
	}
	if r.tracer != nil {
		r.tracer.OnEvent(ev)
	}
}

func (r *Registry) retain(o *object) {
	id := o.id
	r.counts.lock(id)
	if o.state != StateLive {
		label := o.label
		r.counts.unlock(id)
		fatal(r, ErrRetainDead, id, label)
	}
	o.strong++
	r.emit(EventRetain, id, o.label, o.strong, o.weak)
	r.counts.unlock(id)
}

func (r *Registry) release(o *object) {
	id := o.id
	r.counts.lock(id)
	if o.strong <= 0 {
		label := o.label
		r.counts.unlock(id)
		fatal(r, ErrCountUnderflow, id, label)
	}
	o.strong--
	dead := o.strong == 0
	if dead {
		o.state = StateTornDown
		o.finalizing = true
	}
	r.emit(EventRelease, id, o.label, o.strong, o.weak)
	r.counts.unlock(id)

	if dead {
		r.teardown(o)
	}
}

// teardown runs with no lock held: hooks and member drops may release
// other objects and allocate new ones.
func (r *Registry) teardown(o *object) {
	id := o.id
	r.tornDown.Add(1)
	r.counts.lock(id)
	r.emit(EventTearDown, id, o.label, 0, o.weak)
	r.counts.unlock(id)
	r.log.Debug(r, "Object torn down", "id", id, "label", o.label)

	for _, hook := range o.hooks {
		hook()
	}
	dropMembers(o.value)

	r.counts.lock(id)
	o.value = nil
	o.hooks = nil
	o.finalizing = false
	done := o.weak == 0
	if done {
		o.state = StateReclaimed
	}
	r.counts.unlock(id)

	if done {
		r.reclaim(o)
	}
}

func (r *Registry) retainWeak(o *object) {
	id := o.id
	r.counts.lock(id)
	if o.state == StateReclaimed {
		label := o.label
		r.counts.unlock(id)
		fatal(r, ErrUseAfterFree, id, label)
	}
	o.weak++
	r.emit(EventRetainWeak, id, o.label, o.strong, o.weak)
	r.counts.unlock(id)
}

func (r *Registry) releaseWeak(o *object) {
	id := o.id
	r.counts.lock(id)
	if o.weak <= 0 {
		label := o.label
		r.counts.unlock(id)
		fatal(r, ErrWeakUnderflow, id, label)
	}
	o.weak--
	done := o.weak == 0 && o.state == StateTornDown && !o.finalizing
	if done {
		o.state = StateReclaimed
	}
	r.emit(EventReleaseWeak, id, o.label, o.strong, o.weak)
	r.counts.unlock(id)

	if done {
		r.reclaim(o)
	}
}

// releaseWeakID releases a weak count held by id. The count itself
// keeps the block registered until this call.
func (r *Registry) releaseWeakID(id ID) {
	o := r.lookup(id)
	if o == nil {
		fatal(r, ErrWeakUnderflow, id, "")
	}
	r.releaseWeak(o)
}

// retainWeakID adds a weak count to a registered object, live or not.
func (r *Registry) retainWeakID(id ID) {
	o := r.lookup(id)
	if o == nil {
		fatal(r, ErrUseAfterFree, id, "")
	}
	r.retainWeak(o)
}

// read calls fn under the count lock if id is live, and reports the
// state it found. Unknown ids report StateReclaimed.
func (r *Registry) read(id ID, fn func(o *object)) (state State, label string) {
	r.table.RLock()
	defer r.table.RUnlock()

	o := r.objects[id]
	if o == nil {
		return StateReclaimed, ""
	}
	r.counts.lock(id)
	defer r.counts.unlock(id)
	if o.state == StateLive && fn != nil {
		fn(o)
	}
	return o.state, o.label
}

// reclaim is edge triggered: only the caller that moved the object to
// StateReclaimed gets here.
func (r *Registry) reclaim(o *object) {
	id, label := o.id, o.label

	r.table.Lock()
	delete(r.objects, id)
	r.table.Unlock()

	r.reclaimed.Add(1)
	r.emit(EventReclaim, id, label, 0, 0)
	r.log.Debug(r, "Object reclaimed", "id", id, "label", label)
	r.blocks.Put(o)
}

// Stats returns the registry's counters.
func (r *Registry) Stats() Stats {
	allocated := r.allocated.Load()
	reclaimed := r.reclaimed.Load()
	tornDown := r.tornDown.Load()
	return Stats{
		Allocated: allocated,
		Live:      allocated - tornDown,
		Zombies:   tornDown - reclaimed,
		Reclaimed: reclaimed,
	}
}

// Len returns the number of registered ids, live or torn down.
func (r *Registry) Len() int {
	r.table.RLock()
	defer r.table.RUnlock()
	return len(r.objects)
}
