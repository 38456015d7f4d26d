package features

import (
	"fmt"
	"math"
	"sort"

	"optionpulse/internal/domain/models"
)

// minStrikes is the smallest chain worth aggregating. Below this the ATM
// neighborhood is meaningless and the snapshot is treated as malformed.
const minStrikes = 3

// skewEpsilon keeps the per-strike OI skew denominator away from zero.
const skewEpsilon = 1e-6

// manifest is the produced feature set, in order. It must match the
// training-time feature list shipped with the model artifact.
var manifest = []string{
	"num_strikes",
	"total_call_oi",
	"total_put_oi",
	"pcr",
	"top_call_change_oi",
	"top_put_change_oi",
	"median_call_iv",
	"median_put_iv",
	"median_volume",
	"max_oi_strike",
	"atm_strike",
	"oi_skew",
	"top_strike_oi_pct",
	"spot",
	"median_iv",
}

// Manifest returns the feature names this aggregator produces, in order.
func Manifest() []string {
	out := make([]string, len(manifest))
	copy(out, manifest)
	return out
}

// Aggregate reduces one snapshot to its feature vector. Absent inputs are
// skipped the way column-wise reductions skip missing values; degenerate
// denominators produce 0, never NaN. The returned vector always matches
// Manifest() in names and order.
func Aggregate(snap *models.Snapshot) (models.FeatureVector, error) {
	if snap == nil || len(snap.Strikes) < minStrikes {
		n := 0
		if snap != nil {
			n = len(snap.Strikes)
		}
		return models.FeatureVector{}, models.MalformedSnapshot(
			fmt.Sprintf("chain has %d strikes, need at least %d", n, minStrikes))
	}

	rows := snap.Strikes

	totalCallOI := nanSum(rows, func(r models.StrikeRow) float64 { return r.CallOI })
	totalPutOI := nanSum(rows, func(r models.StrikeRow) float64 { return r.PutOI })

	pcr := 0.0
	if totalCallOI > 0 {
		pcr = totalPutOI / totalCallOI
	}

	// per-strike combined OI, absent sides counted as zero
	combinedOI := make([]float64, len(rows))
	for i, r := range rows {
		combinedOI[i] = zeroIfNaN(r.CallOI) + zeroIfNaN(r.PutOI)
	}
	maxOIStrike := rows[0].Strike
	maxOI := combinedOI[0]
	for i := 1; i < len(rows); i++ {
		if combinedOI[i] > maxOI {
			maxOI = combinedOI[i]
			maxOIStrike = rows[i].Strike
		}
	}

	topStrikeOIPct := 0.0
	if total := totalCallOI + totalPutOI; total > 0 {
		topStrikeOIPct = maxOI / total
	}

	// skew over strikes quoted on both sides
	skewSum, skewN := 0.0, 0
	for _, r := range rows {
		if math.IsNaN(r.CallOI) || math.IsNaN(r.PutOI) {
			continue
		}
		skewSum += (r.CallOI - r.PutOI) / (r.CallOI + r.PutOI + skewEpsilon)
		skewN++
	}
	oiSkew := 0.0
	if skewN > 0 {
		oiSkew = skewSum / float64(skewN)
	}

	volumes := make([]float64, len(rows))
	for i, r := range rows {
		volumes[i] = zeroIfNaN(r.CallVolume) + zeroIfNaN(r.PutVolume)
	}

	allIVs := collect(rows, func(r models.StrikeRow) float64 { return r.CallIV })
	allIVs = append(allIVs, collect(rows, func(r models.StrikeRow) float64 { return r.PutIV })...)

	values := []float64{
		float64(len(rows)),
		totalCallOI,
		totalPutOI,
		pcr,
		nanMax(rows, func(r models.StrikeRow) float64 { return r.CallChangeOI }),
		nanMax(rows, func(r models.StrikeRow) float64 { return r.PutChangeOI }),
		median(collect(rows, func(r models.StrikeRow) float64 { return r.CallIV })),
		median(collect(rows, func(r models.StrikeRow) float64 { return r.PutIV })),
		median(volumes),
		maxOIStrike,
		snap.ATMStrike(),
		oiSkew,
		topStrikeOIPct,
		snap.Spot,
		median(allIVs),
	}

	return models.FeatureVector{Names: Manifest(), Values: values}, nil
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func nanSum(rows []models.StrikeRow, get func(models.StrikeRow) float64) float64 {
	sum := 0.0
	for _, r := range rows {
		sum += zeroIfNaN(get(r))
	}
	return sum
}

func nanMax(rows []models.StrikeRow, get func(models.StrikeRow) float64) float64 {
	best := math.NaN()
	for _, r := range rows {
		v := get(r)
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	if math.IsNaN(best) {
		return 0
	}
	return best
}

func collect(rows []models.StrikeRow, get func(models.StrikeRow) float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := get(r); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// median of the values; 0 for an empty slice. Does not mutate its input.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
