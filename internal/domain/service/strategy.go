package service

import (
	"context"

	"AOWI/internal/domain/models"
)

// Strategy is a pluggable signal unit.
//
// Initialize is called once with the unit's options and returns a *models.ConfigError
// when they are missing or invalid. Evaluate must not retain or modify view and returns
// an empty slice when there is no signal. A unit owns its indicator state; the dispatch
// loop never calls Evaluate on the same instance concurrently.
type Strategy interface {
	Name() string
	Initialize(opts models.Options) error
	Evaluate(ctx context.Context, view models.MarketView) ([]models.Intent, error)
}
