package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
	"optionpulse/internal/repository"
	"optionpulse/internal/services/features"
	"optionpulse/internal/services/predictor"
	"optionpulse/internal/usecase"
	applogger "optionpulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubSource struct {
	snap *models.Snapshot
	err  error
}

func (s *stubSource) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	return s.snap, s.err
}

type stubMetrics struct{}

func (stubMetrics) RecordSnapshotFetched(string)    {}
func (stubMetrics) RecordPrediction(string, string) {}
func (stubMetrics) RecordError(string)              {}
func (stubMetrics) RecordLastSpot(string, float64)  {}
func (stubMetrics) RecordLatency(string, float64)   {}

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

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Symbol:    "NIFTY",
		Timestamp: time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC),
		Spot:      24500,
		Strikes: []models.StrikeRow{
			{Strike: 24400, CallOI: 1000, CallChangeOI: 10, CallVolume: 100, CallIV: 12, PutOI: 2000, PutChangeOI: 5, PutVolume: 50, PutIV: 13},
			{Strike: 24500, CallOI: 2000, CallChangeOI: 20, CallVolume: 200, CallIV: 11, PutOI: 2500, PutChangeOI: 7, PutVolume: 60, PutIV: 14},
			{Strike: 24600, CallOI: 1500, CallChangeOI: 15, CallVolume: 150, CallIV: 13, PutOI: 1000, PutChangeOI: 3, PutVolume: 40, PutIV: 15},
		},
	}
}

func testHandler(t *testing.T, source *stubSource) *PredictHandler {
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
	pipeline := usecase.NewPipeline(source, svc, stubMetrics{})
	buf := repository.NewRingBuffer(10)
	stats := usecase.NewStatsUseCase("NIFTY", buf)
	history := usecase.NewHistoryUseCase(nil)
	return NewPredictHandler(testLogger(t), pipeline, buf, stats, history, nil, nil)
}

func doRequest(t *testing.T, h *PredictHandler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data struct {
			ModelLoaded bool `json:"model_loaded"`
			Buffer      struct {
				Len int `json:"len"`
				Cap int `json:"cap"`
			} `json:"buffer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Data.ModelLoaded {
		t.Error("model_loaded = false")
	}
	if resp.Data.Buffer.Cap != 10 {
		t.Errorf("buffer cap = %d", resp.Data.Buffer.Cap)
	}
}

func TestFeaturesEndpoint(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	rec := doRequest(t, h, http.MethodGet, "/features", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Features []string `json:"features"`
			Count    int      `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	manifest := features.Manifest()
	if resp.Data.Count != len(manifest) {
		t.Fatalf("count = %d, want %d", resp.Data.Count, len(manifest))
	}
	for i, name := range resp.Data.Features {
		if name != manifest[i] {
			t.Fatalf("features[%d] = %s, want %s", i, name, manifest[i])
		}
	}
}

func TestPredictLive(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	rec := doRequest(t, h, http.MethodGet, "/predict/nifty", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.PredictionResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Label != "UP" {
		t.Errorf("label = %s, want UP", resp.Data.Label)
	}
	if resp.Data.Symbol != "NIFTY" {
		t.Errorf("symbol = %s, want NIFTY (uppercased)", resp.Data.Symbol)
	}
}

func TestPredictLiveMarketClosed(t *testing.T) {
	h := testHandler(t, &stubSource{err: models.MarketClosed("exchange is closed")})
	rec := doRequest(t, h, http.MethodGet, "/predict/NIFTY", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "market_closed") {
		t.Errorf("body missing reason: %s", rec.Body.String())
	}
}

func TestPredictLiveMalformedSnapshot(t *testing.T) {
	h := testHandler(t, &stubSource{err: models.MalformedSnapshot("no strikes")})
	rec := doRequest(t, h, http.MethodGet, "/predict/NIFTY", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestPredictWithFeatures(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})

	vals := make(map[string]float64)
	for _, name := range features.Manifest() {
		vals[name] = 1
	}
	body, _ := json.Marshal(map[string]interface{}{"symbol": "NIFTY", "features": vals})

	rec := doRequest(t, h, http.MethodPost, "/predict", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPredictWithMissingFeature(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	body := `{"symbol":"NIFTY","features":{"spot":24500}}`

	rec := doRequest(t, h, http.MethodPost, "/predict", body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestPredictBadSymbol(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	rec := doRequest(t, h, http.MethodPost, "/predict", `{"symbol":"nifty"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for lowercase symbol", rec.Code)
	}
}

func TestRecent(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	for i := 0; i < 3; i++ {
		h.buffer.Push(&models.PredictionResult{
			Symbol:    "NIFTY",
			Timestamp: time.Date(2025, 8, 25, 10, 0, i, 0, time.UTC),
			Label:     "UP",
		})
	}

	rec := doRequest(t, h, http.MethodGet, "/recent?n=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Rows  []models.PredictionResult `json:"rows"`
			Total int64                     `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Total != 2 || len(resp.Data.Rows) != 2 {
		t.Fatalf("rows = %d, total = %d, want 2", len(resp.Data.Rows), resp.Data.Total)
	}
}

func TestHistoryUnavailable(t *testing.T) {
	h := testHandler(t, &stubSource{snap: testSnapshot()})
	rec := doRequest(t, h, http.MethodGet, "/history?symbol=NIFTY", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without readable backend", rec.Code)
	}
}
