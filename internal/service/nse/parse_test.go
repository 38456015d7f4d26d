package nse

import (
	"math"
	"strings"
	"testing"
	"time"

	"optionpulse/internal/domain/models"
)

const samplePayload = `{
  "records": {
    "expiryDates": ["28-Aug-2025", "04-Sep-2025"],
    "underlyingValue": 24500.35,
    "timestamp": "25-Aug-2025 15:30:00",
    "data": [
      {"strikePrice": 24400, "expiryDate": "28-Aug-2025",
       "CE": {"openInterest": 1000, "changeinOpenInterest": 50, "totalTradedVolume": 200, "impliedVolatility": 12.5, "lastPrice": 155.2},
       "PE": {"openInterest": 2000, "changeinOpenInterest": -30, "totalTradedVolume": 300, "impliedVolatility": 13.1, "lastPrice": 80.4}},
      {"strikePrice": 24600, "expiryDate": "28-Aug-2025",
       "CE": {"openInterest": "1,500", "changeinOpenInterest": 70, "totalTradedVolume": 120, "impliedVolatility": "-", "lastPrice": 60.0}},
      {"strikePrice": 24500, "expiryDate": "28-Aug-2025",
       "PE": {"openInterest": 900, "changeinOpenInterest": 10, "totalTradedVolume": 150, "impliedVolatility": 12.9, "lastPrice": 110.0}},
      {"strikePrice": 24400, "expiryDate": "04-Sep-2025",
       "CE": {"openInterest": 99999, "changeinOpenInterest": 0, "totalTradedVolume": 0, "impliedVolatility": 11.0, "lastPrice": 170.0}}
    ]
  }
}`

func TestParseChain(t *testing.T) {
	snap, err := ParseChain([]byte(samplePayload), "NIFTY")
	if err != nil {
		t.Fatalf("ParseChain failed: %v", err)
	}
	if snap.Symbol != "NIFTY" {
		t.Errorf("symbol = %q", snap.Symbol)
	}
	if snap.Spot != 24500.35 {
		t.Errorf("spot = %v, want 24500.35", snap.Spot)
	}
	// far expiry row excluded
	if len(snap.Strikes) != 3 {
		t.Fatalf("strikes = %d, want 3", len(snap.Strikes))
	}
	// sorted ascending
	for i := 1; i < len(snap.Strikes); i++ {
		if snap.Strikes[i].Strike < snap.Strikes[i-1].Strike {
			t.Fatalf("strikes not sorted: %v before %v", snap.Strikes[i-1].Strike, snap.Strikes[i].Strike)
		}
	}
	// comma-separated quoted number parsed
	if snap.Strikes[2].CallOI != 1500 {
		t.Errorf("24600 call OI = %v, want 1500", snap.Strikes[2].CallOI)
	}
	// "-" becomes NaN
	if !math.IsNaN(snap.Strikes[2].CallIV) {
		t.Errorf("24600 call IV = %v, want NaN", snap.Strikes[2].CallIV)
	}
	// put-only row has NaN call side
	if !math.IsNaN(snap.Strikes[1].CallOI) {
		t.Errorf("24500 call OI = %v, want NaN", snap.Strikes[1].CallOI)
	}
	if snap.Strikes[1].PutOI != 900 {
		t.Errorf("24500 put OI = %v, want 900", snap.Strikes[1].PutOI)
	}

	want := time.Date(2025, time.August, 25, 15, 30, 0, 0, snap.Timestamp.Location())
	if !snap.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, want)
	}
}

func TestParseChainEmptyData(t *testing.T) {
	_, err := ParseChain([]byte(`{"records": {"data": [], "underlyingValue": 24500}}`), "NIFTY")
	if models.KindOf(err) != models.KindDataUnavailable || models.ReasonOf(err) != models.ReasonMarketClosed {
		t.Fatalf("err = %v, want market_closed", err)
	}
}

func TestParseChainMissingSpot(t *testing.T) {
	_, err := ParseChain([]byte(`{"records": {"data": [{"strikePrice": 100, "CE": {"openInterest": 1}}]}}`), "NIFTY")
	if models.KindOf(err) != models.KindMalformedSnapshot {
		t.Fatalf("err = %v, want malformed_snapshot", err)
	}
}

func TestParseChainBadJSON(t *testing.T) {
	_, err := ParseChain([]byte("<html>blocked</html>"), "NIFTY")
	if models.KindOf(err) != models.KindMalformedSnapshot {
		t.Fatalf("err = %v, want malformed_snapshot", err)
	}
}

func TestCleanNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234.5", 1234.5},
		{" 42 ", 42},
		{"-", math.NaN()},
		{"", math.NaN()},
		{"N/A", math.NaN()},
		{"abc", math.NaN()},
		{"-12.5", -12.5},
	}
	for _, tt := range tests {
		got := cleanNumeric(tt.in)
		if math.IsNaN(tt.want) {
			if !math.IsNaN(got) {
				t.Errorf("cleanNumeric(%q) = %v, want NaN", tt.in, got)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("cleanNumeric(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	body := strings.Join([]string{
		"CALLS OI,CALLS Change in OI,CALLS IV,Strike Price,PUTS IV,PUTS Change in OI,PUTS OI",
		`"1,000",50,12.5,24400,13.1,-30,"2,000"`,
		"-,-,-,24500,12.9,10,900",
		"x,0,0,notastrike,0,0,0",
	}, "\n")

	snap, err := ParseCSV(strings.NewReader(body), "NIFTY", 24450, time.Now())
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(snap.Strikes) != 2 {
		t.Fatalf("strikes = %d, want 2", len(snap.Strikes))
	}
	if snap.Strikes[0].CallOI != 1000 || snap.Strikes[0].PutOI != 2000 {
		t.Errorf("row 0 OI = %v/%v, want 1000/2000", snap.Strikes[0].CallOI, snap.Strikes[0].PutOI)
	}
	if !math.IsNaN(snap.Strikes[1].CallOI) {
		t.Errorf("row 1 call OI = %v, want NaN", snap.Strikes[1].CallOI)
	}
}

func TestParseCSVNoStrikeColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("a,b,c\n1,2,3\n"), "NIFTY", 100, time.Now())
	if models.KindOf(err) != models.KindMalformedSnapshot {
		t.Fatalf("err = %v, want malformed_snapshot", err)
	}
}
