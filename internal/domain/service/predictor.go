package service

import (
	"optionpulse/internal/domain/models"
)

// Scorer is the opaque scoring function exported by model training. It maps
// a feature vector (manifest order) to raw per-class probabilities.
type Scorer interface {
	NumClasses() int
	NumFeatures() int
	Score(values []float64) ([]float64, error)
}

// Predictor scores one feature vector against the loaded model artifact.
// Implementations are pure reads over the artifact; concurrent calls must
// not mutate shared state.
type Predictor interface {
	Predict(fv models.FeatureVector, meta models.SnapshotMeta) (*models.PredictionResult, error)
	Manifest() []string
	Loaded() bool
}
