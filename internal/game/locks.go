package game

import "sync"

// roundLocks serializes operations per round ID. Concurrent requests
// against different rounds proceed in parallel; two against the same
// round queue. Entries are reference counted and removed when the last
// holder releases, so the map does not grow with round churn.
type roundLocks struct {
	mu    sync.Mutex
	locks map[string]*roundLock
}

type roundLock struct {
	mu   sync.Mutex
	refs int
}

func newRoundLocks() *roundLocks {
	return &roundLocks{locks: make(map[string]*roundLock)}
}

// acquire blocks until the round's lock is held and returns the
// release function.
func (l *roundLocks) acquire(roundID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[roundID]
	if !ok {
		entry = &roundLock{}
		l.locks[roundID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, roundID)
		}
		l.mu.Unlock()
	}
}
