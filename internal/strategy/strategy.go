// Package strategy implements the signal generators: independent, pure
// functions from a price series to one dated BUY/SELL/HOLD signal per bar
// once enough history exists.
package strategy

import (
	"sort"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Strategy is the interface all signal generators implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MinDataPoints returns the number of bars required before the first
	// signal can be emitted.
	MinDataPoints() int

	// Evaluate produces one signal per bar from MinDataPoints-1 onward,
	// HOLD included. A series shorter than MinDataPoints yields no signals
	// and no error.
	Evaluate(series *domain.PriceSeries) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered strategies in name order.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, name := range r.List() {
		out = append(out, r.strategies[name])
	}
	return out
}

// DefaultRegistry builds a registry with every built-in strategy, configured
// from cfg.
func DefaultRegistry(cfg config.Strategies) *Registry {
	r := NewRegistry()
	r.Register(NewMACross(cfg.MACross))
	r.Register(NewRSIDivergence(cfg.RSI))
	r.Register(NewMACD(cfg.MACD))
	r.Register(NewVolumePrice(cfg.VolumePrice))
	r.Register(NewTrendFollowing(cfg.Trend))
	return r
}
