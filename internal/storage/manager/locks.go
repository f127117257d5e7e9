package manager

import "sync"

// lockTable hands out one exclusive lock per logical table id.
// Entries are reference counted and removed once nobody holds or waits on them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the caller holds the lock for key and returns its release func.
func (l *lockTable) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of keys currently tracked
func (l *lockTable) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
