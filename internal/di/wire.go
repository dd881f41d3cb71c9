//go:build wireinject
// +build wireinject

package di

import (
	"GexFlow/pkg/config"
	"GexFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideSnapshotMirror,

		// Engine
		ProvideChainProvider,
		ProvideVolSeedCache,
		ProvideAggregator,
		ProvideDetector,
		ProvideSnapshotStore,
		ProvideLevelMonitor,

		// Read side
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
