// sync_pool is a generic sync.Pool wrapper
package sync_pool

import (
	"sync"
	"sync/atomic"
)

// SyncPool recycles values of type T. Every value handed out has been
// passed through reset, whether it was freshly made or reused.
type SyncPool[T any] struct {
	pool  *sync.Pool
	reset func(T)
	made  *atomic.Uint64
}

// New creates a new Pool[T].
func New[T any](init func() T, reset func(T)) SyncPool[T] {
	made := &atomic.Uint64{}
	return SyncPool[T]{
		pool: &sync.Pool{
			New: func() any {
				made.Add(1)
				return init()
			},
		},
		reset: reset,
		made:  made,
	}
}

// Get returns a reset T from the pool.
func (p *SyncPool[T]) Get() T {
	val := p.pool.Get().(T)
	p.reset(val)
	return val
}

// Put returns a T to the pool.
func (p *SyncPool[T]) Put(val T) {
	p.pool.Put(val)
}

// Made returns how many values were created because the pool was empty.
func (p *SyncPool[T]) Made() uint64 {
	return p.made.Load()
}
