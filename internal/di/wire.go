//go:build wireinject
// +build wireinject

package di

import (
	"AOWI/pkg/config"
	"AOWI/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideRunID,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories and sources
		ProvideMarketSource,
		ProvideResultSinks,
		ProvideOutcomePipeline,
		ProvideLiveAdapter,

		// Use cases
		ProvideStrategies,
		ProvideOutcomeLog,
		ProvideDispatchConfig,
		ProvideDispatchLoop,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
