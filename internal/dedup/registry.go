// Package dedup tracks the senders that already received an automated reply
// during the current session.
package dedup

import (
	"strings"
	"sync"
)

// Registry is a concurrency-safe set of normalized sender addresses.
//
// Each Clear starts a new generation. Writes tagged with an older generation
// are ignored, so a reply that completes after a logout cannot repopulate the
// registry of the next session.
type Registry struct {
	mu         sync.RWMutex
	senders    map[string]struct{}
	generation uint64
}

// New returns an empty registry
func New() *Registry {
	return &Registry{senders: make(map[string]struct{})}
}

// Normalize lower-cases and trims an address
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Contains reports whether address has been replied to in this session
func (r *Registry) Contains(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.senders[Normalize(address)]
	return ok
}

// Generation returns the current session generation
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Record inserts address into the current generation
func (r *Registry) Record(address string) {
	r.mu.Lock()
	r.senders[Normalize(address)] = struct{}{}
	r.mu.Unlock()
}

// RecordIn inserts address only if gen is still the current generation.
// It reports whether the address was recorded.
func (r *Registry) RecordIn(gen uint64, address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return false
	}
	r.senders[Normalize(address)] = struct{}{}
	return true
}

// Len returns the number of recorded senders
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.senders)
}

// Snapshot returns the recorded senders in no particular order
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.senders))
	for addr := range r.senders {
		out = append(out, addr)
	}
	return out
}

// Clear empties the registry and starts a new generation
func (r *Registry) Clear() {
	r.mu.Lock()
	r.senders = make(map[string]struct{})
	r.generation++
	r.mu.Unlock()
}
