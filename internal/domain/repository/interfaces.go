package repository

import (
	"context"
	"time"

	"optionpulse/internal/domain/models"
)

// ChainSource fetches one option-chain snapshot per call. Failures are tagged
// models.Error values: market_closed, network, rate_limited.
type ChainSource interface {
	Fetch(ctx context.Context, symbol string) (*models.Snapshot, error)
}

// FeatureSink persists aggregated feature vectors for offline analysis.
// Writes are off the prediction critical path; a failed append must never
// fail the prediction response.
type FeatureSink interface {
	Append(ctx context.Context, rec *models.FeatureRecord) error
	Health(ctx context.Context) error
	Close() error
}

// AuditPublisher emits prediction results as audit records.
type AuditPublisher interface {
	Publish(ctx context.Context, r *models.PredictionResult) error
	Close() error
}

// SnapshotBuffer retains the last N prediction results in memory, strict
// FIFO. Single writer (the collector loop); readers may be concurrent.
type SnapshotBuffer interface {
	Push(r *models.PredictionResult)
	LastN(n int) []*models.PredictionResult
	All() []*models.PredictionResult
	Len() int
	Cap() int
}

// HistoryReader reads back persisted feature records for a symbol.
type HistoryReader interface {
	LatestN(ctx context.Context, symbol string, n int) ([]models.FeatureRecord, error)
	Range(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FeatureRecord, error)
}

// LiveFeed pushes fresh prediction results to connected consumers.
type LiveFeed interface {
	Publish(r *models.PredictionResult)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordSnapshotFetched(symbol string)
	RecordPrediction(symbol, label string)
	RecordError(kind string)
	RecordLastSpot(symbol string, spot float64)
	RecordLatency(op string, seconds float64)
}
