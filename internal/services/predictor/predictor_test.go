package predictor

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
	applogger "optionpulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

var testLabels = []string{"DOWN", "FLAT", "UP"}
var testManifest = []string{"pcr", "oi_skew", "spot"}

// stubScorer returns fixed probabilities regardless of input.
type stubScorer struct {
	probs []float64
	feats int
}

func (s stubScorer) NumClasses() int  { return len(s.probs) }
func (s stubScorer) NumFeatures() int { return s.feats }
func (s stubScorer) Score(values []float64) ([]float64, error) {
	out := make([]float64, len(s.probs))
	copy(out, s.probs)
	return out, nil
}

func testVector() models.FeatureVector {
	return models.FeatureVector{Names: []string{"pcr", "oi_skew", "spot"}, Values: []float64{1.2, -0.1, 24500}}
}

func testMeta() models.SnapshotMeta {
	return models.SnapshotMeta{Symbol: "NIFTY", Timestamp: time.Now(), Spot: 24500}
}

func TestPredictLabelAndProbabilities(t *testing.T) {
	svc, err := NewFromScorer(stubScorer{probs: []float64{0.2, 0.3, 0.5}, feats: 3}, testLabels, testManifest)
	if err != nil {
		t.Fatalf("NewFromScorer: %v", err)
	}

	r, err := svc.Predict(testVector(), testMeta())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if r.Label != "UP" || r.ClassIndex != 2 {
		t.Errorf("label = %s idx %d, want UP idx 2", r.Label, r.ClassIndex)
	}
	sum := 0.0
	for _, p := range r.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("probability sum = %v, want 1 within 1e-6", sum)
	}
	if r.TopProbability() != 0.5 {
		t.Errorf("top probability = %v, want 0.5", r.TopProbability())
	}
	if r.Symbol != "NIFTY" || r.Spot != 24500 {
		t.Errorf("meta not carried: %+v", r)
	}
}

func TestPredictManifestMismatch(t *testing.T) {
	svc, err := NewFromScorer(stubScorer{probs: []float64{0.5, 0.5}, feats: 3}, []string{"DOWN", "UP"}, testManifest)
	if err != nil {
		t.Fatalf("NewFromScorer: %v", err)
	}

	// wrong order
	fv := models.FeatureVector{Names: []string{"oi_skew", "pcr", "spot"}, Values: []float64{1, 2, 3}}
	_, err = svc.Predict(fv, testMeta())
	if models.KindOf(err) != models.KindFeatureContract {
		t.Fatalf("reordered vector: err = %v, want feature_contract_violation", err)
	}

	// missing feature
	fv = models.FeatureVector{Names: []string{"pcr", "spot"}, Values: []float64{1, 2}}
	_, err = svc.Predict(fv, testMeta())
	if models.KindOf(err) != models.KindFeatureContract {
		t.Fatalf("short vector: err = %v, want feature_contract_violation", err)
	}
}

func TestPredictRejectsNaN(t *testing.T) {
	svc, err := NewFromScorer(stubScorer{probs: []float64{1, 0, 0}, feats: 3}, testLabels, testManifest)
	if err != nil {
		t.Fatalf("NewFromScorer: %v", err)
	}
	fv := models.FeatureVector{Names: testManifest, Values: []float64{1, math.NaN(), 3}}
	_, err = svc.Predict(fv, testMeta())
	if models.KindOf(err) != models.KindFeatureContract {
		t.Fatalf("err = %v, want feature_contract_violation", err)
	}
}

func TestPredictModelNotLoaded(t *testing.T) {
	log := testLogger(t)
	svc := New(t.TempDir(), log)
	if svc.Loaded() {
		t.Fatal("empty dir should not load")
	}
	_, err := svc.Predict(testVector(), testMeta())
	if models.KindOf(err) != models.KindModelNotLoaded {
		t.Fatalf("err = %v, want model_not_loaded", err)
	}
}

// two-class ensemble: one tree per class splitting on feature 0 at 10.
const testModelJSON = `{
  "num_class": 2,
  "num_features": 2,
  "trees": [
    {"class": 0, "nodes": [
      {"leaf": false, "feature": 0, "threshold": 10, "left": 1, "right": 2},
      {"leaf": true, "value": 2.0},
      {"leaf": true, "value": -1.0}
    ]},
    {"class": 1, "nodes": [
      {"leaf": false, "feature": 0, "threshold": 10, "left": 1, "right": 2},
      {"leaf": true, "value": -2.0},
      {"leaf": true, "value": 1.0}
    ]}
  ]
}`

func TestEnsembleScore(t *testing.T) {
	e, err := ParseEnsemble([]byte(testModelJSON))
	if err != nil {
		t.Fatalf("ParseEnsemble: %v", err)
	}

	low, err := e.Score([]float64{5, 0})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if low[0] <= low[1] {
		t.Errorf("low input should favor class 0: %v", low)
	}
	high, err := e.Score([]float64{15, 0})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if high[1] <= high[0] {
		t.Errorf("high input should favor class 1: %v", high)
	}
	for _, probs := range [][]float64{low, high} {
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("softmax sum = %v", sum)
		}
	}
}

func TestEnsembleRejectsBadTrees(t *testing.T) {
	bad := `{"num_class": 2, "num_features": 1, "trees": [
		{"class": 5, "nodes": [{"leaf": true, "value": 1}]}]}`
	if _, err := ParseEnsemble([]byte(bad)); err == nil {
		t.Fatal("expected error for out-of-range class")
	}

	cyclic := `{"num_class": 2, "num_features": 1, "trees": [
		{"class": 0, "nodes": [{"leaf": false, "feature": 0, "threshold": 1, "left": 0, "right": 0}]}]}`
	if _, err := ParseEnsemble([]byte(cyclic)); err == nil {
		t.Fatal("expected error for non-forward children")
	}
}

func writeArtifact(t *testing.T, model, encoder, features string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{modelFile: model, encoderFile: encoder, featuresFile: features}
	for name, body := range files {
		if body == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadArtifact(t *testing.T) {
	dir := writeArtifact(t, testModelJSON, `{"classes": ["DOWN", "UP"]}`, `["pcr", "spot"]`)
	art, err := LoadArtifact(dir)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if len(art.Labels) != 2 || art.Labels[1] != "UP" {
		t.Errorf("labels = %v", art.Labels)
	}
	if len(art.Features) != 2 {
		t.Errorf("features = %v", art.Features)
	}
}

func TestLoadArtifactMissingFile(t *testing.T) {
	dir := writeArtifact(t, testModelJSON, `{"classes": ["DOWN", "UP"]}`, "")
	if _, err := LoadArtifact(dir); err == nil {
		t.Fatal("expected error for missing features.json")
	}
}

func TestLoadArtifactInconsistent(t *testing.T) {
	dir := writeArtifact(t, testModelJSON, `{"classes": ["DOWN", "FLAT", "UP"]}`, `["pcr", "spot"]`)
	if _, err := LoadArtifact(dir); err == nil {
		t.Fatal("expected error for class count mismatch")
	}

	dir = writeArtifact(t, testModelJSON, `{"classes": ["DOWN", "UP"]}`, `["pcr", "spot", "extra"]`)
	if _, err := LoadArtifact(dir); err == nil {
		t.Fatal("expected error for feature count mismatch")
	}
}
