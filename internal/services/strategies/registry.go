package strategies

import (
	"errors"
	"fmt"
	"sort"

	"AOWI/internal/domain/models"
	"AOWI/internal/domain/service"
)

// Factory builds an uninitialized strategy.
type Factory func() service.Strategy

// Registry maps strategy names to factories. Iteration follows registration order.
type Registry struct {
	names     []string
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry holding the reference strategies.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(UltraScalpName, func() service.Strategy { return NewUltraScalp() })
	r.MustRegister(LiquiditySweepName, func() service.Strategy { return NewLiquiditySweep() })
	r.MustRegister(VWAPMagnetName, func() service.Strategy { return NewVWAPMagnet() })
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("strategy name is empty")
	}
	if f == nil {
		return fmt.Errorf("strategy %s: nil factory", name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.names = append(r.names, name)
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Build creates and initializes every configured strategy, in registry order.
func (r *Registry) Build(cfg map[string]models.Options) ([]service.Strategy, error) {
	if len(cfg) == 0 {
		return nil, &models.ConfigError{Reason: "no strategies configured"}
	}

	var unknown []string
	for name := range cfg {
		if _, ok := r.factories[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &models.ConfigError{Strategy: unknown[0], Reason: "not registered"}
	}

	units := make([]service.Strategy, 0, len(cfg))
	for _, name := range r.names {
		opts, ok := cfg[name]
		if !ok {
			continue
		}
		unit := r.factories[name]()
		if err := unit.Initialize(cloneOptions(opts)); err != nil {
			var cerr *models.ConfigError
			if errors.As(err, &cerr) {
				return nil, err
			}
			return nil, &models.ConfigError{Strategy: name, Err: err}
		}
		units = append(units, unit)
	}
	return units, nil
}

func cloneOptions(opts models.Options) models.Options {
	out := make(models.Options, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
