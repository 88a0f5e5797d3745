//go:build wireinject
// +build wireinject

package di

import (
	"FxPredict/pkg/config"
	"FxPredict/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Forecasting
		ProvideCurrencySet,
		ProvideCache,
		ProvideRateSource,
		ProvidePipeline,

		// Snapshot storage and transport
		ProvideClickHouseClient,
		ProvideSnapshotStore,
		ProvideKafkaProducer,
		ProvideSnapshotPublisher,
		ProvideKafkaConsumer,

		// Snapshot delivery
		ProvideStreamHub,
		ProvideSnapshotProcessor,
		ProvideScheduler,

		// HTTP
		ProvideRateLimiter,
		ProvideEndpointMetrics,
		ProvidePredictionsHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
