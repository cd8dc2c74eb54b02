//go:build wireinject
// +build wireinject

package di

import (
	"daytrade/pkg/config"
	"daytrade/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideCache,
		ProvideQueue,

		// Repositories
		ProvideBarStore,
		ProvideDatasetStore,
		ProvidePublisher,
		ProvideMarketData,
		ProvideMarketStream,

		// Use cases
		ProvideDatasetBuilder,
		ProvidePredictor,
		ProvideBarHandler,
		ProvideBuildJob,
		ProvideStreamIngestor,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
