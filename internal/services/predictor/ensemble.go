package predictor

import (
	"encoding/json"
	"fmt"
	"math"
)

// node is one decision node. Leaves carry a value; internal nodes route on
// feature <= threshold to the left child, else right.
type node struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type tree struct {
	Class int    `json:"class"`
	Nodes []node `json:"nodes"`
}

// Ensemble is a gradient-boosted tree ensemble exported to JSON at training
// time. Per-class raw scores are the sum of each class's tree outputs plus
// an optional init score; Score applies softmax over them.
type Ensemble struct {
	NumClass   int       `json:"num_class"`
	NumFeature int       `json:"num_features"`
	InitScore  []float64 `json:"init_score"`
	Trees      []tree    `json:"trees"`
}

// ParseEnsemble decodes and validates an exported model file.
func ParseEnsemble(b []byte) (*Ensemble, error) {
	var e Ensemble
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if e.NumClass < 2 {
		return nil, fmt.Errorf("model declares %d classes, need at least 2", e.NumClass)
	}
	if e.NumFeature < 1 {
		return nil, fmt.Errorf("model declares %d features", e.NumFeature)
	}
	if len(e.InitScore) != 0 && len(e.InitScore) != e.NumClass {
		return nil, fmt.Errorf("init_score has %d entries for %d classes", len(e.InitScore), e.NumClass)
	}
	for ti, t := range e.Trees {
		if t.Class < 0 || t.Class >= e.NumClass {
			return nil, fmt.Errorf("tree %d targets unknown class %d", ti, t.Class)
		}
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= e.NumFeature {
				return nil, fmt.Errorf("tree %d node %d splits on unknown feature %d", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("tree %d node %d has out-of-range children", ti, ni)
			}
		}
	}
	return &e, nil
}

func (e *Ensemble) NumClasses() int  { return e.NumClass }
func (e *Ensemble) NumFeatures() int { return e.NumFeature }

// Score evaluates the ensemble on one feature vector and returns softmax
// probabilities, one per class.
func (e *Ensemble) Score(values []float64) ([]float64, error) {
	if len(values) != e.NumFeature {
		return nil, fmt.Errorf("got %d features, model wants %d", len(values), e.NumFeature)
	}

	raw := make([]float64, e.NumClass)
	copy(raw, e.InitScore)
	for _, t := range e.Trees {
		raw[t.Class] += t.evaluate(values)
	}
	return softmax(raw), nil
}

func (t *tree) evaluate(values []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if values[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// softmax with max-subtraction for numeric stability.
func softmax(raw []float64) []float64 {
	max := raw[0]
	for _, v := range raw[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(raw))
	sum := 0.0
	for i, v := range raw {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
