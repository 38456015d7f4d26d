package di

import (
	"context"
	"sync"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
	"optionpulse/internal/services/features"
	"optionpulse/internal/services/predictor"
	"optionpulse/internal/usecase"
	"optionpulse/pkg/config"
	applogger "optionpulse/pkg/logger"
)

type stubMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newStubMetrics() *stubMetrics                  { return &stubMetrics{errors: make(map[string]int)} }
func (m *stubMetrics) RecordSnapshotFetched(string) {}
func (m *stubMetrics) RecordPrediction(string, string) {}
func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *stubMetrics) RecordLastSpot(string, float64) {}
func (m *stubMetrics) RecordLatency(string, float64)  {}

type stubSource struct{}

func (stubSource) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	return &models.Snapshot{
		Symbol:    symbol,
		Timestamp: time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC),
		Spot:      24500,
		Strikes: []models.StrikeRow{
			{Strike: 24400, CallOI: 1000, CallChangeOI: 10, CallVolume: 100, CallIV: 12, PutOI: 2000, PutChangeOI: 5, PutVolume: 50, PutIV: 13},
			{Strike: 24500, CallOI: 2000, CallChangeOI: 20, CallVolume: 200, CallIV: 11, PutOI: 2500, PutChangeOI: 7, PutVolume: 60, PutIV: 14},
			{Strike: 24600, CallOI: 1500, CallChangeOI: 15, CallVolume: 150, CallIV: 13, PutOI: 1000, PutChangeOI: 3, PutVolume: 40, PutIV: 15},
		},
	}, nil
}

type fixedScorer struct {
	probs []float64
	feats int
}

func (s fixedScorer) NumClasses() int  { return len(s.probs) }
func (s fixedScorer) NumFeatures() int { return s.feats }
func (s fixedScorer) Score([]float64) ([]float64, error) {
	out := make([]float64, len(s.probs))
	copy(out, s.probs)
	return out, nil
}

// The headless collector wires no websocket hub. The provider must hand the
// collector an interface that compares nil, not a nil *api.LiveHub boxed in
// a non-nil interface that panics on first publish.
func TestProvideCollectorNilHubRunsCycle(t *testing.T) {
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	manifest := features.Manifest()
	svc, err := predictor.NewFromScorer(
		fixedScorer{probs: []float64{0.2, 0.3, 0.5}, feats: len(manifest)},
		[]string{"DOWN", "FLAT", "UP"},
		manifest,
	)
	if err != nil {
		t.Fatalf("NewFromScorer: %v", err)
	}

	m := newStubMetrics()
	pipeline := usecase.NewPipeline(stubSource{}, svc, m)

	cfg := &config.Config{}
	cfg.Collector.Symbol = "NIFTY"
	cfg.Collector.Interval = time.Hour
	cfg.Collector.FetchRetries = 1
	cfg.Collector.RetryBackoff = time.Millisecond
	cfg.Collector.BufferSize = 5

	buffer := ProvideRingBuffer(cfg)
	c := ProvideCollector(cfg, pipeline, buffer, nil, nil, nil, m, log)

	if !c.RunOnce(context.Background()) {
		t.Fatal("RunOnce failed with nil hub")
	}
	if buffer.Len() != 1 {
		t.Fatalf("buffer Len = %d, want 1", buffer.Len())
	}
}
