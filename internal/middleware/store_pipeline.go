package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionpulse/internal/domain/models"
	domrepo "optionpulse/internal/domain/repository"
)

// StorePipeline sits between the collector and the durable feature sink. It
// validates records, forwards them, and buffers with backoff when the sink
// is down, so a store outage never fails a prediction.
type StorePipeline struct {
	sink    domrepo.FeatureSink
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan *models.FeatureRecord
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*StorePipeline)

// WithBufferSize sets the holding buffer size used while the sink is down.
func WithBufferSize(n int) PipelineOption {
	return func(p *StorePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewStorePipeline creates a new pipeline in front of sink.
func NewStorePipeline(sink domrepo.FeatureSink, metrics domrepo.Metrics, opts ...PipelineOption) *StorePipeline {
	p := &StorePipeline{
		sink:    sink,
		metrics: metrics,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.FeatureRecord, p.bufSize)
	return p
}

// Start launches background flushing of buffered records.
func (p *StorePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case rec := <-p.bufCh:
				if rec == nil {
					continue
				}
				if err := p.sink.Append(ctx, rec); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("store_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- rec:
					default:
						p.metrics.RecordError("store_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *StorePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Append validates and forwards one record, buffering on sink errors. The
// returned error reports the sink failure; buffered records flush later.
func (p *StorePipeline) Append(ctx context.Context, rec *models.FeatureRecord) error {
	start := time.Now()
	if err := validateRecord(rec); err != nil {
		p.metrics.RecordError("store_validate")
		return err
	}

	if err := p.sink.Append(ctx, rec); err != nil {
		p.metrics.RecordError("store_append")
		select {
		case p.bufCh <- rec:
		default:
			p.metrics.RecordError("store_buffer_full")
		}
		return fmt.Errorf("store downstream: %w", err)
	}
	p.metrics.RecordLatency("store_append", time.Since(start).Seconds())
	return nil
}

// Health proxies the sink health check.
func (p *StorePipeline) Health(ctx context.Context) error {
	return p.sink.Health(ctx)
}

// Close stops flushing and closes the sink.
func (p *StorePipeline) Close() error {
	p.Stop()
	return p.sink.Close()
}

func validateRecord(rec *models.FeatureRecord) error {
	if rec == nil {
		return fmt.Errorf("record nil")
	}
	if rec.Meta.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if rec.Meta.Timestamp.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if len(rec.Features.Names) == 0 || len(rec.Features.Names) != len(rec.Features.Values) {
		return fmt.Errorf("feature vector malformed")
	}
	return nil
}
