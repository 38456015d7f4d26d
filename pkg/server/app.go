package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"optionpulse/internal/usecase"
	pkgch "optionpulse/pkg/clickhouse"
	"optionpulse/pkg/config"
	xhttp "optionpulse/pkg/http"
	pkgkafka "optionpulse/pkg/kafka"
	applogger "optionpulse/pkg/logger"
	"optionpulse/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// LiveFeedCloser is implemented by the websocket hub so shutdown can
// disconnect subscribers.
type LiveFeedCloser interface {
	Close()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	collector  *usecase.Collector
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaAuditHandler
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
	hub        LiveFeedCloser
	httpServer *xhttp.Server
	opsQueue   *queue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAuditHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	hub LiveFeedCloser,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		producer:  producer,
		chClient:  chClient,
		hub:       hub,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startOpsCollector()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	if err := a.collector.Start(ctx); err != nil {
		return fmt.Errorf("collector start: %w", err)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("symbol", a.cfg.Collector.Symbol))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// startOpsCollector attaches log aggregation shipping batched entries to a
// Redis queue. Requires a reachable Redis; skipped otherwise.
func (a *App) startOpsCollector() {
	if !a.cfg.Log.Ops.Enabled {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Cache.Redis.Host, a.cfg.Cache.Redis.Port),
		Password: a.cfg.Cache.Redis.Password,
		DB:       a.cfg.Cache.Redis.DB,
	})
	a.opsQueue = queue.NewRedisPublisher(a.log, client)
	a.log.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   a.cfg.Log.Ops.Interval,
		CountThreshold: a.cfg.Log.Ops.Threshold,
		Topic:          a.cfg.Log.Ops.Topic,
		Publisher:      a.opsQueue,
	})
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// collector first so no new predictions arrive while surfaces close
	if err := a.collector.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.opsQueue != nil {
		if err := a.opsQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("ops queue stop error", applogger.Error(err))
		}
		a.log.RemoveCollector()
	}

	a.log.Info("shutdown complete")
	return nil
}
