package arc

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash"
)

// DefaultStripes is the number of count locks of a synchronized registry.
const DefaultStripes = 64

// countLocker guards the counts and state of one object.
type countLocker interface {
	lock(id ID)
	unlock(id ID)
}

// tableLocker guards the id table.
type tableLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// nopLocker is used by registries that stay on one goroutine.
type nopLocker struct{}

func (nopLocker) lock(ID)   {}
func (nopLocker) unlock(ID) {}
func (nopLocker) Lock()     {}
func (nopLocker) Unlock()   {}
func (nopLocker) RLock()    {}
func (nopLocker) RUnlock()  {}

// stripedLocker spreads objects over a fixed set of mutexes.
type stripedLocker struct {
	mu []sync.Mutex
}

func newStripedLocker(n int) *stripedLocker {
	if n <= 0 {
		n = DefaultStripes
	}
	return &stripedLocker{mu: make([]sync.Mutex, n)}
}

func (s *stripedLocker) stripe(id ID) *sync.Mutex {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(id))
	return &s.mu[xxhash.Sum64(key[:])%uint64(len(s.mu))]
}

func (s *stripedLocker) lock(id ID) {
	s.stripe(id).Lock()
}

func (s *stripedLocker) unlock(id ID) {
	s.stripe(id).Unlock()
}
