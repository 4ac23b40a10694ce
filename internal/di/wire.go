//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"HelixPull/pkg/config"
	"HelixPull/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideLatestStore,

		// Repositories
		ProvideMarketStore,
		ProvideHelixStore,
		ProvidePublisher,
		ProvideStoreHandlers,

		// Core state
		ProvidePriceCache,
		ProvideActivityLog,
		ProvideAccumulator,
		ProvideHub,

		// Use cases
		ProvideEngine,
		ProvidePipeline,
		ProvideCollectors,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
