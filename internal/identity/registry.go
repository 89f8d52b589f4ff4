// Package identity assigns stable display names to network addresses for
// the lifetime of the server process.
package identity

import (
	"fmt"
	"sync"
)

// Registry maps a network address to a sequentially assigned display name.
// Names are handed out in order of first appearance and are never reused or
// reassigned while the process lives.
type Registry struct {
	mu      sync.Mutex
	prefix  string
	names   map[string]string
	counter int
}

// NewRegistry creates an empty Registry. Assigned names have the form
// "<prefix><N>" where N is the 1-based order of first appearance.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		names:  make(map[string]string),
	}
}

// Resolve returns the display name for addr, assigning the next sequential
// name on first sight. It is safe for concurrent use; the counter increment
// and map insert happen under a single lock so two callers can never receive
// the same number.
func (r *Registry) Resolve(addr string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.names[addr]; ok {
		return name
	}

	r.counter++
	name := fmt.Sprintf("%s%d", r.prefix, r.counter)
	r.names[addr] = name
	return name
}

// Len reports how many addresses have been assigned a name.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
