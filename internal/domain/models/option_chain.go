package models

import (
	"math"
	"time"
)

// StrikeRow is one strike level of an option chain. Absent numeric fields are
// NaN (NSE publishes "-" or empty for strikes with no quotes on one side).
type StrikeRow struct {
	Strike       float64
	CallOI       float64
	CallChangeOI float64
	CallVolume   float64
	CallIV       float64
	CallLTP      float64
	CallBid      float64
	CallAsk      float64
	PutOI        float64
	PutChangeOI  float64
	PutVolume    float64
	PutIV        float64
	PutLTP       float64
	PutBid       float64
	PutAsk       float64
}

// Snapshot is one observation of a symbol's option chain: strike rows sorted
// ascending by strike, plus the underlying spot at capture time. Immutable
// once captured.
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Spot      float64
	Strikes   []StrikeRow
}

// SnapshotMeta carries the identifying metadata of a snapshot alongside a
// derived feature vector.
type SnapshotMeta struct {
	Symbol    string
	Timestamp time.Time
	Spot      float64
}

// Meta returns the snapshot's metadata.
func (s *Snapshot) Meta() SnapshotMeta {
	return SnapshotMeta{Symbol: s.Symbol, Timestamp: s.Timestamp, Spot: s.Spot}
}

// ATMStrike returns the strike closest to spot, or NaN for an empty chain.
func (s *Snapshot) ATMStrike() float64 {
	if len(s.Strikes) == 0 {
		return math.NaN()
	}
	best := s.Strikes[0].Strike
	bestDist := math.Abs(best - s.Spot)
	for _, row := range s.Strikes[1:] {
		if d := math.Abs(row.Strike - s.Spot); d < bestDist {
			best = row.Strike
			bestDist = d
		}
	}
	return best
}
