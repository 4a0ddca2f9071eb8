package validation

import (
	"fmt"
	"time"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

// Backend is a named extractor with its per-call timeout. A zero Timeout
// means the call is bounded only by the caller's context.
type Backend struct {
	Name      string
	Extractor port.Extractor
	Timeout   time.Duration
}

// Registry is the ordered set of backends a run exercises. Report rows
// follow registration order.
type Registry struct {
	backends []Backend
	index    map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends a backend. Names must be unique.
func (r *Registry) Register(name string, ext port.Extractor, timeout time.Duration) error {
	if name == "" {
		return fmt.Errorf("%w: backend name is empty", domain.ErrConfiguration)
	}
	if ext == nil {
		return fmt.Errorf("%w: backend %s has no extractor", domain.ErrConfiguration, name)
	}
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateBackend, name)
	}
	r.index[name] = len(r.backends)
	r.backends = append(r.backends, Backend{Name: name, Extractor: ext, Timeout: timeout})
	return nil
}

// Len returns the number of registered backends.
func (r *Registry) Len() int { return len(r.backends) }

// Names returns the backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name
	}
	return names
}

// Backends returns a copy of the registered backends in order.
func (r *Registry) Backends() []Backend {
	out := make([]Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Backend, bool) {
	i, ok := r.index[name]
	if !ok {
		return Backend{}, false
	}
	return r.backends[i], true
}

// Select returns a registry holding only the named backends, still in
// registration order. An empty selection returns r itself.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, n)
		}
		want[n] = true
	}
	sub := NewRegistry()
	for _, b := range r.backends {
		if want[b.Name] {
			_ = sub.Register(b.Name, b.Extractor, b.Timeout)
		}
	}
	return sub, nil
}

// BuildRegistry creates an extractor for every enabled backend through the
// provider factory. Providers must already be linked in (blank imports).
func BuildRegistry(cfg *config.Config, deps extractor.Deps) (*Registry, error) {
	reg := NewRegistry()
	for _, b := range cfg.Backends.Ordered() {
		ext, err := extractor.New(&b, deps)
		if err != nil {
			return nil, fmt.Errorf("creating backend %s: %w", b.Name, err)
		}
		timeout := time.Duration(b.TimeoutSecs) * time.Second
		if timeout == 0 {
			timeout = time.Duration(cfg.Runner.TimeoutSecs) * time.Second
		}
		if err := reg.Register(b.Name, ext, timeout); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
