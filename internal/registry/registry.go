package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/derekparker/trie"
)

var (
	ErrPatternNotFound = errors.New("pattern not found")
	ErrPatternExists   = errors.New("pattern already registered")
)

// Registry holds named patterns with prefix lookup. Names are free-form;
// slashes make natural namespaces ("api/token", "api/secret").
type Registry struct {
	mu      sync.RWMutex
	entries map[string]PatternEntry
	names   *trie.Trie
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]PatternEntry),
		names:   trie.New(),
	}
}

// Add registers a pattern under its name.
func (r *Registry) Add(e PatternEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Name]; ok {
		return ErrPatternExists
	}
	r.entries[e.Name] = e
	r.names.Add(e.Name, nil)
	return nil
}

// Get looks up a pattern by exact name.
func (r *Registry) Get(name string) (PatternEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return PatternEntry{}, ErrPatternNotFound
	}
	return e, nil
}

// Remove drops a pattern by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return ErrPatternNotFound
	}
	delete(r.entries, name)
	r.names.Remove(name)
	return nil
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns all entries sorted by name.
func (r *Registry) List() []PatternEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PatternEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListPrefix returns the entries whose name starts with prefix, sorted by
// name. An empty prefix lists everything.
func (r *Registry) ListPrefix(prefix string) []PatternEntry {
	if prefix == "" {
		return r.List()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.names.PrefixSearch(prefix)
	sort.Strings(names)
	out := make([]PatternEntry, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			out = append(out, e)
		}
	}
	return out
}
