// Package keylock provides named mutual exclusion: callers lock arbitrary
// string keys, and operations on distinct keys proceed in parallel. Lock
// entries are reference counted so the registry does not grow with the
// keyspace.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out per-key mutexes on demand
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewRegistry creates an empty lock registry
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the release function, which
// must be called exactly once.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &entry{}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// LockPair acquires both keys in lexicographic order, so that two callers
// locking the same pair in opposite directions cannot deadlock. Locking the
// same key twice is a programming error and is collapsed to a single lock.
func (r *Registry) LockPair(a, b string) func() {
	if a == b {
		return r.Lock(a)
	}
	if b < a {
		a, b = b, a
	}

	unlockA := r.Lock(a)
	unlockB := r.Lock(b)

	return func() {
		unlockB()
		unlockA()
	}
}
