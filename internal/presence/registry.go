package presence

import (
	"sort"
	"sync"
)

// Registry maps a user id to that user's single live connection.
// A second Register for the same user replaces the first (last connect wins).
// State lives only in memory and starts empty on every process start.
type Registry[C comparable] struct {
	mu    sync.RWMutex
	conns map[string]C
}

// NewRegistry creates an empty registry
func NewRegistry[C comparable]() *Registry[C] {
	return &Registry[C]{conns: make(map[string]C)}
}

// Register maps userID to conn, returning any connection it displaced
func (r *Registry[C]) Register(userID string, conn C) (previous C, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, replaced = r.conns[userID]
	r.conns[userID] = conn
	return previous, replaced
}

// Unregister removes userID unconditionally and returns the connection it held
func (r *Registry[C]) Unregister(userID string) (C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[userID]
	delete(r.conns, userID)
	return conn, ok
}

// UnregisterIf removes userID only while it still maps to conn. A connection
// that was displaced by a newer one must not evict its replacement.
func (r *Registry[C]) UnregisterIf(userID string, conn C) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live connection for userID
func (r *Registry[C]) Lookup(userID string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the online user ids, sorted
func (r *Registry[C]) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each calls fn for every registered connection while holding the read lock.
// fn must not call back into the registry.
func (r *Registry[C]) Each(fn func(userID string, conn C)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, c := range r.conns {
		fn(id, c)
	}
}

// Len returns the number of online users
func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
