package usecase

import (
	"time"

	drepo "optionpulse/internal/domain/repository"
)

// Stats summarizes the retained prediction window.
type Stats struct {
	Symbol         string             `json:"symbol"`
	Retained       int                `json:"retained"`
	Capacity       int                `json:"capacity"`
	LabelCounts    map[string]int     `json:"label_counts"`
	AvgTopProb     float64            `json:"avg_top_probability"`
	SpotMin        float64            `json:"spot_min,omitempty"`
	SpotMax        float64            `json:"spot_max,omitempty"`
	SpotMean       float64            `json:"spot_mean,omitempty"`
	LastPrediction *time.Time         `json:"last_prediction,omitempty"`
	LastSpot       float64            `json:"last_spot,omitempty"`
	LastProbs      map[string]float64 `json:"last_probabilities,omitempty"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
}

// StatsUseCase computes live statistics over the ring buffer.
type StatsUseCase struct {
	symbol  string
	buffer  drepo.SnapshotBuffer
	started time.Time
}

func NewStatsUseCase(symbol string, buffer drepo.SnapshotBuffer) *StatsUseCase {
	return &StatsUseCase{symbol: symbol, buffer: buffer, started: time.Now()}
}

func (uc *StatsUseCase) Stats() Stats {
	all := uc.buffer.All()

	s := Stats{
		Symbol:        uc.symbol,
		Retained:      len(all),
		Capacity:      uc.buffer.Cap(),
		LabelCounts:   make(map[string]int),
		UptimeSeconds: time.Since(uc.started).Seconds(),
	}

	sum := 0.0
	spotSum := 0.0
	for i, r := range all {
		s.LabelCounts[r.Label]++
		sum += r.TopProbability()
		spotSum += r.Spot
		if i == 0 || r.Spot < s.SpotMin {
			s.SpotMin = r.Spot
		}
		if r.Spot > s.SpotMax {
			s.SpotMax = r.Spot
		}
	}
	if len(all) > 0 {
		s.AvgTopProb = sum / float64(len(all))
		s.SpotMean = spotSum / float64(len(all))
		last := all[len(all)-1]
		ts := last.Timestamp
		s.LastPrediction = &ts
		s.LastSpot = last.Spot
		s.LastProbs = last.Probabilities
	}
	return s
}
