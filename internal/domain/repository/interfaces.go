package repository

import (
	"context"

	"AOWI/internal/domain/models"
)

// BrokerAdapter is one broker session. Calls are not reentrant; the dispatch loop serializes them.
type BrokerAdapter interface {
	Name() string
	Connect(ctx context.Context) error
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	Submit(ctx context.Context, order models.Order) models.Result
	Disconnect(ctx context.Context) error
	IsLive() bool
}

// ViewObserver is implemented by adapters that price against the current market view.
type ViewObserver interface {
	Observe(view models.MarketView)
}

// MarketSource produces one market view per cycle.
type MarketSource interface {
	NextView(ctx context.Context) (models.MarketView, error)
}

// ResultSink persists or publishes dispatch results.
type ResultSink interface {
	Name() string
	Write(ctx context.Context, results []models.Result) error
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64)
	RecordIntents(strategy string, n int)
	RecordEvaluationError(strategy string)
	RecordOrder(symbol string, side models.Side)
	RecordResult(status models.Status, adapter string)
	RecordConflict(symbol string)
	RecordClamp(symbol string)
	RecordState(state int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
