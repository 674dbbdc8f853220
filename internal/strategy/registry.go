package strategy

import (
	"errors"
	"fmt"
	"sort"
)

// ErrStrategyNotFound is returned when a registry lookup misses.
var ErrStrategyNotFound = errors.New("strategy not found")

// Registry is an immutable set of validated strategies constructed once at
// startup and passed by reference to every consumer. There is no mutable
// package-level lookup and no hidden default: callers name the strategy
// they want.
type Registry struct {
	byName map[string]*Config
	names  []string
}

// NewRegistry builds a registry from validated configs. Duplicate names are
// rejected so a document cannot silently shadow another.
func NewRegistry(configs []*Config) (*Registry, error) {
	byName := make(map[string]*Config, len(configs))
	names := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if cfg == nil {
			return nil, errors.New("nil strategy config")
		}
		if _, exists := byName[cfg.Meta.Name]; exists {
			return nil, fmt.Errorf("duplicate strategy name %q", cfg.Meta.Name)
		}
		byName[cfg.Meta.Name] = cfg
		names = append(names, cfg.Meta.Name)
	}
	sort.Strings(names)
	return &Registry{byName: byName, names: names}, nil
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (*Config, error) {
	cfg, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotFound, name)
	}
	return cfg, nil
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len reports how many strategies are registered.
func (r *Registry) Len() int {
	return len(r.byName)
}
