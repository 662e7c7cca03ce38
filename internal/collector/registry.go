package collector

import "sync"

// Registry manages source clients by name, remembering registration order.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// Register adds a source; re-registering a name replaces it in place.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.sources[s.Name()] = s
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// GetAll returns all registered sources in registration order
func (r *Registry) GetAll() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.sources[name])
	}
	return result
}

// Chain resolves names to sources implementing T, preserving the given order.
// Unknown names and sources lacking the capability are skipped.
func Chain[T Source](r *Registry, names []string) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []T
	for _, name := range names {
		if s, ok := r.sources[name].(T); ok {
			out = append(out, s)
		}
	}
	return out
}

// Probers returns every registered source that supports the connectivity test.
func (r *Registry) Probers() []Prober {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Prober
	for _, name := range r.order {
		if p, ok := r.sources[name].(Prober); ok {
			out = append(out, p)
		}
	}
	return out
}
