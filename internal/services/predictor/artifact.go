package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	modelFile    = "model.json"
	encoderFile  = "label_encoder.json"
	featuresFile = "features.json"
)

// Artifact is a fully loaded, mutually consistent model bundle: the scorer,
// the class labels in class-index order, and the feature manifest in model
// input order. All three files must be present; a partial bundle never loads.
type Artifact struct {
	Model    *Ensemble
	Labels   []string
	Features []string
}

type labelEncoder struct {
	Classes []string `json:"classes"`
}

// LoadArtifact reads a model bundle from dir and cross-checks its parts.
func LoadArtifact(dir string) (*Artifact, error) {
	modelBytes, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", modelFile, err)
	}
	encoderBytes, err := os.ReadFile(filepath.Join(dir, encoderFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", encoderFile, err)
	}
	featureBytes, err := os.ReadFile(filepath.Join(dir, featuresFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", featuresFile, err)
	}

	model, err := ParseEnsemble(modelBytes)
	if err != nil {
		return nil, err
	}

	var enc labelEncoder
	if err := json.Unmarshal(encoderBytes, &enc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoderFile, err)
	}

	var feats []string
	if err := json.Unmarshal(featureBytes, &feats); err != nil {
		return nil, fmt.Errorf("decode %s: %w", featuresFile, err)
	}

	if len(enc.Classes) != model.NumClasses() {
		return nil, fmt.Errorf("label encoder has %d classes, model declares %d",
			len(enc.Classes), model.NumClasses())
	}
	if len(feats) != model.NumFeatures() {
		return nil, fmt.Errorf("feature list has %d entries, model declares %d",
			len(feats), model.NumFeatures())
	}
	seen := make(map[string]bool, len(feats))
	for _, f := range feats {
		if f == "" || seen[f] {
			return nil, fmt.Errorf("feature list has empty or duplicate entry %q", f)
		}
		seen[f] = true
	}

	return &Artifact{Model: model, Labels: enc.Classes, Features: feats}, nil
}
