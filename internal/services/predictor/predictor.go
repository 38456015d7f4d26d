package predictor

import (
	"fmt"
	"math"

	"optionpulse/internal/domain/models"
	"optionpulse/internal/domain/service"
	applogger "optionpulse/pkg/logger"
)

// Service scores feature vectors against a loaded model bundle. Scoring is a
// pure read over the artifact, so concurrent Predict calls are safe. A
// Service whose bundle failed to load still answers, tagging every Predict
// with model_not_loaded so callers can surface the condition instead of
// crashing the pipeline.
type Service struct {
	scorer   service.Scorer
	labels   []string
	manifest []string
	loadErr  error
}

var _ service.Predictor = (*Service)(nil)

// New loads the model bundle from dir.
func New(dir string, log *applogger.Logger) *Service {
	art, err := LoadArtifact(dir)
	if err != nil {
		log.Error("model bundle failed to load", applogger.String("dir", dir), applogger.Error(err))
		return &Service{loadErr: err}
	}
	log.Info("model bundle loaded",
		applogger.String("dir", dir),
		applogger.Int("classes", len(art.Labels)),
		applogger.Int("features", len(art.Features)))
	return &Service{scorer: art.Model, labels: art.Labels, manifest: art.Features}
}

// NewFromScorer builds a Service around an explicit scorer. Used by tests
// and tools that bypass the on-disk bundle.
func NewFromScorer(scorer service.Scorer, labels, manifest []string) (*Service, error) {
	if scorer.NumClasses() != len(labels) {
		return nil, fmt.Errorf("scorer has %d classes, got %d labels", scorer.NumClasses(), len(labels))
	}
	if scorer.NumFeatures() != len(manifest) {
		return nil, fmt.Errorf("scorer wants %d features, manifest has %d", scorer.NumFeatures(), len(manifest))
	}
	return &Service{scorer: scorer, labels: labels, manifest: manifest}, nil
}

// Loaded reports whether the model bundle initialized.
func (s *Service) Loaded() bool { return s.scorer != nil }

// Manifest returns the model's feature manifest, in input order.
func (s *Service) Manifest() []string {
	out := make([]string, len(s.manifest))
	copy(out, s.manifest)
	return out
}

// Predict scores one feature vector. The vector must match the model
// manifest in names and order and carry no NaN values.
func (s *Service) Predict(fv models.FeatureVector, meta models.SnapshotMeta) (*models.PredictionResult, error) {
	if !s.Loaded() {
		return nil, models.ModelNotLoaded("model bundle is not loaded", s.loadErr)
	}
	if !fv.MatchesManifest(s.manifest) {
		return nil, models.FeatureContractViolation(
			fmt.Sprintf("feature vector %v does not match model manifest %v", fv.Names, s.manifest))
	}
	for i, v := range fv.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, models.FeatureContractViolation(
				fmt.Sprintf("feature %s is not finite", fv.Names[i]))
		}
	}

	probs, err := s.scorer.Score(fv.Values)
	if err != nil {
		return nil, models.FeatureContractViolation(fmt.Sprintf("scorer rejected vector: %v", err))
	}
	if len(probs) != len(s.labels) {
		return nil, models.FeatureContractViolation(
			fmt.Sprintf("scorer returned %d probabilities for %d classes", len(probs), len(s.labels)))
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	byLabel := make(map[string]float64, len(s.labels))
	for i, l := range s.labels {
		byLabel[l] = probs[i]
	}

	return &models.PredictionResult{
		Symbol:        meta.Symbol,
		Timestamp:     meta.Timestamp,
		Label:         s.labels[best],
		ClassIndex:    best,
		Probabilities: byLabel,
		Features:      fv,
		Spot:          meta.Spot,
	}, nil
}
