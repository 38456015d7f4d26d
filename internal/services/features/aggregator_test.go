package features

import (
	"math"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
)

func nan() float64 { return math.NaN() }

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Symbol:    "NIFTY",
		Timestamp: time.Date(2025, 8, 25, 15, 30, 0, 0, time.UTC),
		Spot:      24510,
		Strikes: []models.StrikeRow{
			{Strike: 24400, CallOI: 1000, CallChangeOI: 50, CallVolume: 200, CallIV: 12, PutOI: 2000, PutChangeOI: -30, PutVolume: 300, PutIV: 14},
			{Strike: 24500, CallOI: 3000, CallChangeOI: 80, CallVolume: 400, CallIV: 11, PutOI: 3000, PutChangeOI: 90, PutVolume: 100, PutIV: 13},
			{Strike: 24600, CallOI: 2000, CallChangeOI: nan(), CallVolume: nan(), CallIV: nan(), PutOI: nan(), PutChangeOI: 20, PutVolume: 50, PutIV: 15},
		},
	}
}

func featureMap(t *testing.T, snap *models.Snapshot) map[string]float64 {
	t.Helper()
	fv, err := Aggregate(snap)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(fv.Names) != len(fv.Values) {
		t.Fatalf("names/values length mismatch: %d vs %d", len(fv.Names), len(fv.Values))
	}
	return fv.Map()
}

func TestAggregateManifestOrder(t *testing.T) {
	fv, err := Aggregate(testSnapshot())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !fv.MatchesManifest(Manifest()) {
		t.Fatalf("vector names %v do not match manifest %v", fv.Names, Manifest())
	}
	for i, v := range fv.Values {
		if math.IsNaN(v) {
			t.Errorf("feature %s is NaN", fv.Names[i])
		}
	}
}

func TestAggregateValues(t *testing.T) {
	got := featureMap(t, testSnapshot())

	if got["num_strikes"] != 3 {
		t.Errorf("num_strikes = %v", got["num_strikes"])
	}
	if got["total_call_oi"] != 6000 {
		t.Errorf("total_call_oi = %v, want 6000", got["total_call_oi"])
	}
	// NaN put OI on 24600 skipped
	if got["total_put_oi"] != 5000 {
		t.Errorf("total_put_oi = %v, want 5000", got["total_put_oi"])
	}
	if want := 5000.0 / 6000.0; math.Abs(got["pcr"]-want) > 1e-12 {
		t.Errorf("pcr = %v, want %v", got["pcr"], want)
	}
	// NaN change skipped, max of remaining
	if got["top_call_change_oi"] != 80 {
		t.Errorf("top_call_change_oi = %v, want 80", got["top_call_change_oi"])
	}
	if got["top_put_change_oi"] != 90 {
		t.Errorf("top_put_change_oi = %v, want 90", got["top_put_change_oi"])
	}
	if got["median_call_iv"] != 11.5 {
		t.Errorf("median_call_iv = %v, want 11.5", got["median_call_iv"])
	}
	if got["median_put_iv"] != 14 {
		t.Errorf("median_put_iv = %v, want 14", got["median_put_iv"])
	}
	// volumes: 500, 500, 50 -> median 500
	if got["median_volume"] != 500 {
		t.Errorf("median_volume = %v, want 500", got["median_volume"])
	}
	// combined OI: 3000, 6000, 2000
	if got["max_oi_strike"] != 24500 {
		t.Errorf("max_oi_strike = %v, want 24500", got["max_oi_strike"])
	}
	if got["atm_strike"] != 24500 {
		t.Errorf("atm_strike = %v, want 24500", got["atm_strike"])
	}
	if want := 6000.0 / 11000.0; math.Abs(got["top_strike_oi_pct"]-want) > 1e-12 {
		t.Errorf("top_strike_oi_pct = %v, want %v", got["top_strike_oi_pct"], want)
	}
	if got["spot"] != 24510 {
		t.Errorf("spot = %v", got["spot"])
	}
	// all IVs: 12, 11, 14, 13, 15 -> median 13
	if got["median_iv"] != 13 {
		t.Errorf("median_iv = %v, want 13", got["median_iv"])
	}
}

func TestAggregateOISkewSkipsOneSidedRows(t *testing.T) {
	got := featureMap(t, testSnapshot())
	// only the two double-sided rows contribute
	s1 := (1000.0 - 2000.0) / (1000.0 + 2000.0 + 1e-6)
	s2 := 0.0 / (6000.0 + 1e-6)
	want := (s1 + s2) / 2
	if math.Abs(got["oi_skew"]-want) > 1e-9 {
		t.Errorf("oi_skew = %v, want %v", got["oi_skew"], want)
	}
}

func TestAggregateDegenerateDenominators(t *testing.T) {
	snap := &models.Snapshot{
		Symbol: "NIFTY",
		Spot:   100,
		Strikes: []models.StrikeRow{
			{Strike: 90, CallOI: nan(), PutOI: nan(), CallChangeOI: nan(), PutChangeOI: nan(), CallIV: nan(), PutIV: nan(), CallVolume: nan(), PutVolume: nan()},
			{Strike: 100, CallOI: nan(), PutOI: nan(), CallChangeOI: nan(), PutChangeOI: nan(), CallIV: nan(), PutIV: nan(), CallVolume: nan(), PutVolume: nan()},
			{Strike: 110, CallOI: nan(), PutOI: nan(), CallChangeOI: nan(), PutChangeOI: nan(), CallIV: nan(), PutIV: nan(), CallVolume: nan(), PutVolume: nan()},
		},
	}
	got := featureMap(t, snap)
	for _, name := range []string{"pcr", "oi_skew", "top_strike_oi_pct", "median_iv", "top_call_change_oi"} {
		if got[name] != 0 {
			t.Errorf("%s = %v, want 0 sentinel", name, got[name])
		}
	}
	for name, v := range got {
		if math.IsNaN(v) {
			t.Errorf("%s is NaN, sentinel expected", name)
		}
	}
}

func TestAggregateTooFewStrikes(t *testing.T) {
	snap := &models.Snapshot{Symbol: "NIFTY", Spot: 100, Strikes: []models.StrikeRow{{Strike: 100, CallOI: 1}}}
	_, err := Aggregate(snap)
	if models.KindOf(err) != models.KindMalformedSnapshot {
		t.Fatalf("err = %v, want malformed_snapshot", err)
	}
}
