package game

import "sync"

// sessionLocks provides per-game mutual exclusion. Operations on the same
// game serialize; different games proceed in parallel. Entries are
// reference-counted so the map does not grow with finished games.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*sessionLockEntry
}

type sessionLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{
		entries: make(map[string]*sessionLockEntry),
	}
}

// Lock acquires the lock for gameID, blocking until it is available.
func (l *sessionLocks) Lock(gameID string) {
	l.mu.Lock()
	entry, ok := l.entries[gameID]
	if !ok {
		entry = &sessionLockEntry{}
		l.entries[gameID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock for gameID.
func (l *sessionLocks) Unlock(gameID string) {
	l.mu.Lock()
	entry, ok := l.entries[gameID]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, gameID)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
