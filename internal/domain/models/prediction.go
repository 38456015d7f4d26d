package models

import "time"

// PredictionResult is the outcome of scoring one feature vector. Created once
// per predictor invocation and never mutated; may be serialized as an audit
// record.
type PredictionResult struct {
	Symbol        string             `json:"symbol"`
	Timestamp     time.Time          `json:"timestamp"`
	Label         string             `json:"label"`
	ClassIndex    int                `json:"class_index"`
	Probabilities map[string]float64 `json:"probabilities"`
	Features      FeatureVector      `json:"-"`
	Spot          float64            `json:"spot"`
}

// TopProbability returns the probability assigned to the predicted label.
func (r *PredictionResult) TopProbability() float64 {
	return r.Probabilities[r.Label]
}
