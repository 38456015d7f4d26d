package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
	"optionpulse/internal/repository"
	"optionpulse/internal/services/features"
	"optionpulse/internal/services/predictor"
	applogger "optionpulse/pkg/logger"
)

type stubMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newStubMetrics() *stubMetrics               { return &stubMetrics{errors: make(map[string]int)} }
func (m *stubMetrics) RecordSnapshotFetched(string) {}
func (m *stubMetrics) RecordPrediction(string, string) {}
func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *stubMetrics) RecordLastSpot(string, float64) {}
func (m *stubMetrics) RecordLatency(string, float64)  {}

// stubSource replays a scripted sequence of snapshots and errors.
type stubSource struct {
	mu    sync.Mutex
	steps []func() (*models.Snapshot, error)
	calls int
}

func (s *stubSource) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[s.calls%len(s.steps)]
	s.calls++
	return step()
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

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func goodSnapshot(i int) *models.Snapshot {
	return &models.Snapshot{
		Symbol:    "NIFTY",
		Timestamp: time.Date(2025, 8, 25, 10, 0, i, 0, time.UTC),
		Spot:      24500,
		Strikes: []models.StrikeRow{
			{Strike: 24400, CallOI: 1000, CallChangeOI: 10, CallVolume: 100, CallIV: 12, PutOI: 2000, PutChangeOI: 5, PutVolume: 50, PutIV: 13},
			{Strike: 24500, CallOI: 2000, CallChangeOI: 20, CallVolume: 200, CallIV: 11, PutOI: 2500, PutChangeOI: 7, PutVolume: 60, PutIV: 14},
			{Strike: 24600, CallOI: 1500, CallChangeOI: 15, CallVolume: 150, CallIV: 13, PutOI: 1000, PutChangeOI: 3, PutVolume: 40, PutIV: 15},
		},
	}
}

func testPipeline(t *testing.T, source *stubSource) (*Pipeline, *stubMetrics) {
	t.Helper()
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
	return NewPipeline(source, svc, m), m
}

func TestFetchAndPredictEndToEnd(t *testing.T) {
	source := &stubSource{steps: []func() (*models.Snapshot, error){
		func() (*models.Snapshot, error) { return goodSnapshot(0), nil },
	}}
	p, _ := testPipeline(t, source)

	r, err := p.FetchAndPredict(context.Background(), "NIFTY")
	if err != nil {
		t.Fatalf("FetchAndPredict: %v", err)
	}
	if r.Label != "UP" {
		t.Errorf("label = %s, want UP", r.Label)
	}
	sum := 0.0
	for _, v := range r.Probabilities {
		sum += v
	}
	if diff := sum - 1; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("probability sum = %v", sum)
	}
	if !r.Features.MatchesManifest(features.Manifest()) {
		t.Error("result features do not match manifest")
	}
}

func TestPredictFeaturesMissingEntry(t *testing.T) {
	p, _ := testPipeline(t, &stubSource{steps: []func() (*models.Snapshot, error){nil}})

	vals := map[string]float64{"spot": 24500}
	_, err := p.PredictFeatures("NIFTY", vals)
	if models.KindOf(err) != models.KindFeatureContract {
		t.Fatalf("err = %v, want feature_contract_violation", err)
	}
}

func TestCollectorRunOncePushesToBuffer(t *testing.T) {
	source := &stubSource{steps: []func() (*models.Snapshot, error){
		func() (*models.Snapshot, error) { return goodSnapshot(0), nil },
	}}
	p, _ := testPipeline(t, source)
	buf := repository.NewRingBuffer(5)

	c := NewCollector(
		CollectorConfig{Symbol: "NIFTY", Interval: time.Hour, FetchRetries: 1, RetryBackoff: time.Millisecond},
		p, buf, nil, nil, nil, newStubMetrics(), testLogger(t),
	)

	const n, k = 5, 2
	for i := 0; i < n+k; i++ {
		c.RunOnce(context.Background())
	}
	if buf.Len() != n {
		t.Fatalf("buffer Len = %d, want %d", buf.Len(), n)
	}
}

func TestCollectorSurvivesFailures(t *testing.T) {
	// market closed, then transient network, then success
	source := &stubSource{steps: []func() (*models.Snapshot, error){
		func() (*models.Snapshot, error) { return nil, models.MarketClosed("closed") },
		func() (*models.Snapshot, error) { return nil, models.NetworkUnavailable("down", nil) },
		func() (*models.Snapshot, error) { return goodSnapshot(1), nil },
	}}
	p, m := testPipeline(t, source)
	buf := repository.NewRingBuffer(5)

	c := NewCollector(
		CollectorConfig{Symbol: "NIFTY", Interval: time.Hour, FetchRetries: 2, RetryBackoff: time.Millisecond},
		p, buf, nil, nil, nil, newStubMetrics(), testLogger(t),
	)

	c.RunOnce(context.Background()) // market closed, absorbed
	if buf.Len() != 0 {
		t.Fatalf("buffer Len = %d after market-closed cycle", buf.Len())
	}
	c.RunOnce(context.Background()) // network error retried, then success
	if buf.Len() != 1 {
		t.Fatalf("buffer Len = %d, want 1 after retry cycle", buf.Len())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors[string(models.KindDataUnavailable)] == 0 {
		t.Error("expected data_unavailable errors recorded")
	}
}

func TestCollectorRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	source := &stubSource{steps: []func() (*models.Snapshot, error){
		func() (*models.Snapshot, error) { calls++; return nil, models.MalformedSnapshot("bad") },
	}}
	p, _ := testPipeline(t, source)
	buf := repository.NewRingBuffer(5)

	c := NewCollector(
		CollectorConfig{Symbol: "NIFTY", Interval: time.Hour, FetchRetries: 3, RetryBackoff: time.Millisecond},
		p, buf, nil, nil, nil, newStubMetrics(), testLogger(t),
	)
	c.RunOnce(context.Background())
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1 for non-retryable error", calls)
	}
}

func TestStats(t *testing.T) {
	buf := repository.NewRingBuffer(10)
	uc := NewStatsUseCase("NIFTY", buf)

	empty := uc.Stats()
	if empty.Retained != 0 || empty.LastPrediction != nil {
		t.Fatalf("empty stats = %+v", empty)
	}

	for i, label := range []string{"UP", "UP", "DOWN"} {
		buf.Push(&models.PredictionResult{
			Symbol:        "NIFTY",
			Timestamp:     time.Date(2025, 8, 25, 10, 0, i, 0, time.UTC),
			Label:         label,
			Probabilities: map[string]float64{label: 0.6},
			Spot:          24500,
		})
	}

	s := uc.Stats()
	if s.Retained != 3 || s.LabelCounts["UP"] != 2 || s.LabelCounts["DOWN"] != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.AvgTopProb < 0.59 || s.AvgTopProb > 0.61 {
		t.Errorf("avg top prob = %v", s.AvgTopProb)
	}
	if s.LastSpot != 24500 {
		t.Errorf("last spot = %v", s.LastSpot)
	}
	if s.SpotMin != 24500 || s.SpotMax != 24500 || s.SpotMean != 24500 {
		t.Errorf("spot stats = %v/%v/%v", s.SpotMin, s.SpotMax, s.SpotMean)
	}
}

func TestCollectorStopsAtSnapshotCap(t *testing.T) {
	source := &stubSource{steps: []func() (*models.Snapshot, error){
		func() (*models.Snapshot, error) { return goodSnapshot(0), nil },
	}}
	p, _ := testPipeline(t, source)
	buf := repository.NewRingBuffer(10)

	c := NewCollector(
		CollectorConfig{Symbol: "NIFTY", Interval: time.Millisecond, FetchRetries: 1,
			RetryBackoff: time.Millisecond, MaxSnapshots: 2},
		p, buf, nil, nil, nil, newStubMetrics(), testLogger(t),
	)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for buf.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// loop exits at the cap; give it a few more ticks to prove it stopped
	time.Sleep(20 * time.Millisecond)
	if buf.Len() != 2 {
		t.Fatalf("buffer Len = %d, want exactly 2", buf.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
