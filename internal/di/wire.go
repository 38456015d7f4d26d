//go:build wireinject
// +build wireinject

package di

import (
	"optionpulse/pkg/config"
	"optionpulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Upstream and model
		ProvideChainSource,
		ProvidePredictor,

		// Storage
		ProvideRingBuffer,
		ProvideStore,
		ProvideStorePipeline,

		// Audit transport
		ProvideKafkaProducer,
		ProvideAuditPublisher,
		ProvideKafkaConsumer,
		ProvideAuditHandler,

		// Use cases
		ProvidePipeline,
		ProvideCollector,
		ProvideStats,
		ProvideHistory,

		// HTTP surface
		ProvideCache,
		ProvideLiveHub,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
