package strategy

import (
	"sort"
	"sync"

	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Factory constructs a fresh, uninitialized strategy instance. Each run gets
// its own instance so parallel parameter sweeps cannot share state.
type Factory func() Strategy

// Registry maps strategy names to factories for CLI lookup.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory to the registry.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s already registered", name)
	}

	r.factories[name] = factory

	return nil
}

// New constructs a strategy by name.
func (r *Registry) New(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy: %s", name)
	}

	return factory(), nil
}

// List returns the registered strategy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(SMACrossoverName, func() Strategy { return NewSMACrossover() })
	_ = r.Register(PredictionThresholdName, func() Strategy { return NewPredictionThreshold() })

	return r
}
