package di

import (
	"context"
	"fmt"
	"time"

	"optionpulse/internal/domain/repository"
	domsvc "optionpulse/internal/domain/service"
	"optionpulse/internal/handler/api"
	mid "optionpulse/internal/middleware"
	internalrepo "optionpulse/internal/repository"
	"optionpulse/internal/service/marketcal"
	"optionpulse/internal/service/nse"
	"optionpulse/internal/services/predictor"
	"optionpulse/internal/usecase"
	pkgcache "optionpulse/pkg/cache"
	pkgch "optionpulse/pkg/clickhouse"
	"optionpulse/pkg/config"
	pkgkafka "optionpulse/pkg/kafka"
	applogger "optionpulse/pkg/logger"
	"optionpulse/pkg/metrics"
	"optionpulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideChainSource creates the upstream option-chain fetcher.
func ProvideChainSource(cfg *config.Config, log *applogger.Logger) repository.ChainSource {
	var hours nse.Hours
	if cfg.NSE.MarketHoursCheck {
		hours = marketcal.New(cfg.NSE.MIC)
	}
	return nse.New(nse.Config{
		BaseURL:   cfg.NSE.BaseURL,
		PrimeURL:  cfg.NSE.PrimeURL,
		UserAgent: cfg.NSE.UserAgent,
		Timeout:   cfg.NSE.Timeout,
	}, hours, log)
}

// ProvidePredictor loads the model bundle. A failed load still yields a
// working service; every Predict call reports model_not_loaded.
func ProvidePredictor(cfg *config.Config, log *applogger.Logger) domsvc.Predictor {
	return predictor.New(cfg.Model.Dir, log)
}

// ProvideRingBuffer creates the in-memory prediction window.
func ProvideRingBuffer(cfg *config.Config) repository.SnapshotBuffer {
	return internalrepo.NewRingBuffer(cfg.Collector.BufferSize)
}

// Store bundles the configured durable backend. Reader and CH stay nil for
// backends without read support.
type Store struct {
	Sink   repository.FeatureSink
	Reader repository.HistoryReader
	CH     *pkgch.Client
}

// ProvideStore selects and initializes the durable feature store backend.
func ProvideStore(cfg *config.Config, log *applogger.Logger) (*Store, error) {
	switch cfg.Store.Backend {
	case "parquet":
		return &Store{Sink: internalrepo.NewParquetSink(cfg.Store.ParquetDir, log)}, nil

	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements()); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}

		st := internalrepo.NewCHFeatureStore(client)
		st.SetLogger(log)
		return &Store{Sink: st, Reader: st, CH: client}, nil

	case "none":
		return &Store{Sink: internalrepo.NopSink{}}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ProvideStorePipeline wraps the sink with buffering so a store outage never
// fails a prediction cycle.
func ProvideStorePipeline(store *Store, m repository.Metrics, cfg *config.Config) *mid.StorePipeline {
	opts := []mid.PipelineOption{}
	if cfg.Store.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Store.BufferSize))
	}
	return mid.NewStorePipeline(store.Sink, m, opts...)
}

// ProvideKafkaProducer creates the audit producer, or nil when audit
// publishing is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	k := cfg.Audit.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher creates the Kafka audit publisher, or nil when
// disabled.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Audit.Kafka.Topic)
}

// ProvideKafkaConsumer creates the audit consumer, or nil when consumption is
// disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Audit.Enabled || !cfg.Audit.Consume {
		return nil, nil
	}
	k := cfg.Audit.Kafka
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAuditHandler creates the consumer-side audit writer. Requires the
// clickhouse backend for the audit table.
func ProvideAuditHandler(store *Store, m repository.Metrics, cfg *config.Config) *usecase.KafkaAuditHandler {
	if !cfg.Audit.Enabled || !cfg.Audit.Consume {
		return nil
	}
	ch, ok := store.Sink.(*internalrepo.CHFeatureStore)
	if !ok {
		return nil
	}
	return usecase.NewKafkaAuditHandler(cfg.Audit.Kafka.Topic, ch, m)
}

// ProvideLiveHub creates the websocket fan-out hub.
func ProvideLiveHub(log *applogger.Logger) *api.LiveHub {
	return api.NewLiveHub(log)
}

// ProvidePipeline creates the fetch -> aggregate -> predict pipeline.
func ProvidePipeline(source repository.ChainSource, p domsvc.Predictor, m repository.Metrics) *usecase.Pipeline {
	return usecase.NewPipeline(source, p, m)
}

// ProvideCollector creates the periodic collection loop.
func ProvideCollector(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	buffer repository.SnapshotBuffer,
	storePipe *mid.StorePipeline,
	audit repository.AuditPublisher,
	hub *api.LiveHub,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Collector {
	// assign through a typed check; a nil *api.LiveHub stuffed straight into
	// the interface parameter would compare non-nil inside the collector
	var live repository.LiveFeed
	if hub != nil {
		live = hub
	}
	return usecase.NewCollector(
		usecase.CollectorConfig{
			Symbol:       cfg.Collector.Symbol,
			Interval:     cfg.Collector.Interval,
			FetchRetries: cfg.Collector.FetchRetries,
			RetryBackoff: cfg.Collector.RetryBackoff,
			MaxPerMinute: cfg.Collector.MaxPerMinute,
			MaxSnapshots: cfg.Collector.MaxSnapshots,
		},
		pipeline, buffer, storePipe, audit, live, m, log,
	)
}

// ProvideStats creates the buffer statistics use case.
func ProvideStats(cfg *config.Config, buffer repository.SnapshotBuffer) *usecase.StatsUseCase {
	return usecase.NewStatsUseCase(cfg.Collector.Symbol, buffer)
}

// ProvideHistory creates the history read use case.
func ProvideHistory(store *Store) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store.Reader)
}

// ProvideCache creates the response cache, or nil when disabled.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return pkgcache.NewLayeredCache(rc), nil
	}
	return pkgcache.NewMemoryCache(), nil
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.Pipeline,
	buffer repository.SnapshotBuffer,
	stats *usecase.StatsUseCase,
	history *usecase.HistoryUseCase,
	store *Store,
	hub *api.LiveHub,
	cache pkgcache.Service,
) *api.PredictHandler {
	h := api.NewPredictHandler(log, pipeline, buffer, stats, history, store.Sink, hub)
	if cache != nil {
		h.SetCache(cache, cfg.Cache.TTL)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.PredictHandler,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAuditHandler,
	producer *pkgkafka.Producer,
	store *Store,
	hub *api.LiveHub,
) *server.App {
	return server.New(cfg, log, handler, collector, consumer, kh, producer, store.CH, hub)
}
