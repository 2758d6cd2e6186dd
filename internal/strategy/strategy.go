// Package strategy defines the Strategy interface for signal-generating
// trading strategies and provides a Registry for managing multiple strategy
// implementations.
package strategy

import (
	"context"
	"sort"

	"quantor/internal/domain"
)

// Strategy is the interface that all trading strategies must implement.
// A strategy is a pure signal generator: it never touches portfolio state.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// ComputeSignals derives a date-aligned signal series from the given
	// price history. The returned series may omit hold days.
	ComputeSignals(ctx context.Context, prices domain.PriceSeries) ([]domain.Signal, error)
}

// Factory builds a strategy instance from a named parameter set. The
// optimizer calls a Factory once per grid combination.
type Factory func(params map[string]any) (Strategy, error)

// Registry holds named strategy factories for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the factory was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
