package usecase

import (
	"context"
	"fmt"
	"time"

	"optionpulse/internal/domain/models"
	drepo "optionpulse/internal/domain/repository"
	domsvc "optionpulse/internal/domain/service"
	"optionpulse/internal/services/features"
)

// Pipeline runs the fetch -> aggregate -> predict sequence for one symbol.
// It holds no snapshot state; every call produces a fresh result.
type Pipeline struct {
	source    drepo.ChainSource
	predictor domsvc.Predictor
	metrics   drepo.Metrics
}

func NewPipeline(source drepo.ChainSource, predictor domsvc.Predictor, metrics drepo.Metrics) *Pipeline {
	return &Pipeline{source: source, predictor: predictor, metrics: metrics}
}

// FetchAndPredict fetches a live snapshot and scores it. Errors carry the
// pipeline's tagged kinds so callers and handlers can branch on them.
func (p *Pipeline) FetchAndPredict(ctx context.Context, symbol string) (*models.PredictionResult, error) {
	start := time.Now()

	snap, err := p.source.Fetch(ctx, symbol)
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}
	p.metrics.RecordSnapshotFetched(symbol)
	p.metrics.RecordLastSpot(symbol, snap.Spot)

	fv, err := features.Aggregate(snap)
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}

	r, err := p.predictor.Predict(fv, snap.Meta())
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}

	p.metrics.RecordPrediction(symbol, r.Label)
	p.metrics.RecordLatency("fetch_predict", time.Since(start).Seconds())
	return r, nil
}

// PredictSnapshot aggregates and scores an already captured snapshot, used
// by the CSV import path.
func (p *Pipeline) PredictSnapshot(snap *models.Snapshot) (*models.PredictionResult, error) {
	fv, err := features.Aggregate(snap)
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}
	r, err := p.predictor.Predict(fv, snap.Meta())
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}
	p.metrics.RecordPrediction(snap.Symbol, r.Label)
	return r, nil
}

// PredictFeatures scores a caller-supplied feature map. Missing manifest
// entries are rejected rather than zero-filled.
func (p *Pipeline) PredictFeatures(symbol string, vals map[string]float64) (*models.PredictionResult, error) {
	manifest := p.predictor.Manifest()
	if len(manifest) == 0 {
		return nil, models.ModelNotLoaded("model bundle is not loaded", nil)
	}

	values := make([]float64, len(manifest))
	for i, name := range manifest {
		v, ok := vals[name]
		if !ok {
			return nil, models.FeatureContractViolation(fmt.Sprintf("missing feature %q", name))
		}
		values[i] = v
	}

	spot := vals["spot"]
	meta := models.SnapshotMeta{Symbol: symbol, Timestamp: time.Now(), Spot: spot}
	r, err := p.predictor.Predict(models.FeatureVector{Names: manifest, Values: values}, meta)
	if err != nil {
		p.metrics.RecordError(string(models.KindOf(err)))
		return nil, err
	}
	p.metrics.RecordPrediction(symbol, r.Label)
	return r, nil
}

// ModelLoaded reports whether the predictor has a usable model bundle.
func (p *Pipeline) ModelLoaded() bool { return p.predictor.Loaded() }

// Manifest exposes the model's feature manifest for the features endpoint.
func (p *Pipeline) Manifest() []string { return p.predictor.Manifest() }
