package conversation

import (
	"sync"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// registry serializes turn processing per session. A turn is a
// read-modify-write over the session's graph and counters, so at most one may
// be in flight per id; sessions with different ids run fully in parallel.
type registry struct {
	mu    sync.Mutex
	locks map[domain.SessionID]*sync.Mutex
}

func newRegistry() *registry {
	return &registry{
		locks: make(map[domain.SessionID]*sync.Mutex),
	}
}

// acquire blocks until the session's lock is held and returns the release
// function. Locks are never evicted; one mutex per session id is cheap
// relative to the session state itself.
func (r *registry) acquire(id domain.SessionID) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
