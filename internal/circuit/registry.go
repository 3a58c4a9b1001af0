package circuit

import (
	"sync"

	"github.com/agentmesh/core/pkg/types"
)

// Registry manages named breakers, creating them lazily with shared
// defaults. Adapted from the teacher's CircuitBreakerRegistry.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

// NewRegistry creates a Registry. defaults.Name is overwritten per
// breaker with its lookup name.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the named breaker, creating it with the registry's
// default config on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg := r.defaults
	cfg.Name = name
	b = New(cfg)
	r.breakers[name] = b
	return b
}

// GetWithConfig returns the named breaker, creating it with cfg if it
// does not already exist. An existing breaker under that name is
// returned unchanged.
func (r *Registry) GetWithConfig(name string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg.Name = name
	b := New(cfg)
	r.breakers[name] = b
	return b
}

// AllMetrics returns a snapshot of every breaker's metrics, keyed by
// name.
func (r *Registry) AllMetrics() map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metrics, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Metrics()
	}
	return out
}

// OpenNames returns the names of all currently OPEN breakers.
func (r *Registry) OpenNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []string
	for name, b := range r.breakers {
		if b.State() == StateOpen {
			open = append(open, name)
		}
	}
	return open
}

// ResetAll forces every breaker back to CLOSED.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}

// WithPublisher returns a copy of cfg with Publish wired to emit onto
// publish. Convenience for constructing per-component breaker configs
// that all report to the same event bus.
func WithPublisher(cfg Config, publish func(types.Event)) Config {
	cfg.Publish = publish
	return cfg
}
