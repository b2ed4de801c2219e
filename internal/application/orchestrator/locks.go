package orchestrator

import "sync"

// sessionLocks provides an exclusive advisory lock per session ID. Two
// concurrent operations against the same session serialize; operations on
// different sessions proceed independently. Entries are reference-counted so
// the map does not grow with dead sessions.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*lockEntry)}
}

// lock acquires the exclusive lock for the given session ID and returns the
// release function.
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
