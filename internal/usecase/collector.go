package usecase

import (
	"context"
	"time"

	"optionpulse/internal/domain/models"
	drepo "optionpulse/internal/domain/repository"
	mid "optionpulse/internal/middleware"
	"optionpulse/internal/service/ratelimit"
	applogger "optionpulse/pkg/logger"
)

// CollectorConfig tunes the periodic collection loop.
type CollectorConfig struct {
	Symbol       string
	Interval     time.Duration
	FetchRetries int
	RetryBackoff time.Duration
	MaxPerMinute float64
	MaxSnapshots int // stop the loop after this many successful cycles; 0 is unlimited
}

// Collector drives the pipeline on a fixed interval, retains results in the
// ring buffer and fans them out to the durable store, the audit topic and
// live subscribers. It is the buffer's single writer.
type Collector struct {
	cfg      CollectorConfig
	pipeline *Pipeline
	buffer   drepo.SnapshotBuffer
	store    *mid.StorePipeline
	audit    drepo.AuditPublisher
	live     drepo.LiveFeed
	limiter  *ratelimit.Limiter
	metrics  drepo.Metrics
	log      *applogger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollector(
	cfg CollectorConfig,
	pipeline *Pipeline,
	buffer drepo.SnapshotBuffer,
	store *mid.StorePipeline,
	audit drepo.AuditPublisher,
	live drepo.LiveFeed,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Collector {
	return &Collector{
		cfg:      cfg,
		pipeline: pipeline,
		buffer:   buffer,
		store:    store,
		audit:    audit,
		live:     live,
		limiter:  ratelimit.New(),
		metrics:  metrics,
		log:      log,
	}
}

// Start launches the collection loop. It returns immediately; the loop runs
// until Shutdown or context cancellation.
func (c *Collector) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	if c.store != nil {
		c.store.Start(ctx)
	}

	go c.run(ctx)
	return nil
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.log.Info("collector started",
		applogger.String("symbol", c.cfg.Symbol),
		applogger.Duration("interval", c.cfg.Interval))

	// first cycle immediately, then on the ticker
	collected := 0
	if c.RunOnce(ctx) {
		collected++
	}
	for {
		if c.cfg.MaxSnapshots > 0 && collected >= c.cfg.MaxSnapshots {
			c.log.Info("snapshot cap reached", applogger.Int("collected", collected))
			return
		}
		select {
		case <-ctx.Done():
			c.log.Info("collector stopped")
			return
		case <-ticker.C:
			if c.RunOnce(ctx) {
				collected++
			}
		}
	}
}

// RunOnce executes one collection cycle and reports whether a result was
// retained. Any failure is absorbed: expected conditions are logged quietly
// and the loop stays alive.
func (c *Collector) RunOnce(ctx context.Context) bool {
	if c.cfg.MaxPerMinute > 0 &&
		!c.limiter.Allow(c.cfg.Symbol, c.cfg.MaxPerMinute, c.cfg.MaxPerMinute/60) {
		c.metrics.RecordError("collector_throttle")
		return false
	}

	r, err := c.fetchWithRetry(ctx)
	if err != nil {
		switch {
		case models.ReasonOf(err) == models.ReasonMarketClosed:
			c.log.Debug("cycle skipped, market closed", applogger.String("symbol", c.cfg.Symbol))
		case models.KindOf(err) != "":
			c.log.Warn("cycle failed",
				applogger.String("symbol", c.cfg.Symbol),
				applogger.String("kind", string(models.KindOf(err))),
				applogger.Error(err))
		default:
			c.log.Error("cycle failed", applogger.String("symbol", c.cfg.Symbol), applogger.Error(err))
		}
		return false
	}

	c.buffer.Push(r)

	if c.store != nil {
		rec := &models.FeatureRecord{
			Meta:     models.SnapshotMeta{Symbol: r.Symbol, Timestamp: r.Timestamp, Spot: r.Spot},
			Features: r.Features,
		}
		if err := c.store.Append(ctx, rec); err != nil {
			// buffered inside the pipeline; prediction already succeeded
			c.log.Warn("feature store append failed", applogger.Error(err))
		}
	}

	if c.audit != nil {
		if err := c.audit.Publish(ctx, r); err != nil {
			c.metrics.RecordError("audit_publish")
			c.log.Warn("audit publish failed", applogger.Error(err))
		}
	}

	if c.live != nil {
		c.live.Publish(r)
	}

	c.log.Info("cycle complete",
		applogger.String("symbol", r.Symbol),
		applogger.String("label", r.Label),
		applogger.Float64("probability", r.TopProbability()),
		applogger.Float64("spot", r.Spot))
	return true
}

// fetchWithRetry retries transient failures with linear backoff; all other
// error kinds surface immediately.
func (c *Collector) fetchWithRetry(ctx context.Context) (*models.PredictionResult, error) {
	var lastErr error
	attempts := c.cfg.FetchRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		r, err := c.pipeline.FetchAndPredict(ctx, c.cfg.Symbol)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if !models.IsRetryable(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
	return nil, lastErr
}

// Shutdown stops the loop and waits for the in-flight cycle to finish.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
