// Package help collects the usage lines scripts declare and renders them for
// chat and for the browser.
package help

import "sync"

// Registry is the ordered list of help entries ("<usage> - <description>").
// Entries keep insertion order and duplicates; nothing is validated.
type Registry struct {
	mu      sync.RWMutex
	entries []string
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends entry.
func (r *Registry) Register(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// List returns a copy of every entry in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.entries))
	copy(result, r.entries)
	return result
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
