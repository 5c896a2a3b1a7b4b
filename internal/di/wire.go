//go:build wireinject
// +build wireinject

package di

import (
	"QuantBench/pkg/config"
	"QuantBench/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideJobQueue,

		// Repositories
		ProvideHistoryStore,
		ProvideResultStore,
		ProvideRunPublisher,
		ProvideMarketStream,

		// Engine
		ProvideTracker,
		ProvideRegimeDetector,
		ProvideWeighter,

		// Use cases
		ProvideTickProcessor,
		ProvidePriceCollector,
		ProvideSignalIngest,
		ProvideBacktestRunner,
		ProvideAsyncBacktest,

		// HTTP + application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
