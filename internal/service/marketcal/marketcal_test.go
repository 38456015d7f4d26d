package marketcal

import (
	"testing"
	"time"
)

func fallbackChecker(t *testing.T) *Checker {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return &Checker{fallback: true, loc: loc}
}

func TestFallbackSessionHours(t *testing.T) {
	c := fallbackChecker(t)
	loc := c.loc

	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"monday mid-session", time.Date(2025, 8, 25, 11, 0, 0, 0, loc), true},
		{"monday at open", time.Date(2025, 8, 25, 9, 15, 0, 0, loc), true},
		{"monday before open", time.Date(2025, 8, 25, 9, 14, 0, 0, loc), false},
		{"monday at close", time.Date(2025, 8, 25, 15, 30, 0, 0, loc), false},
		{"monday last minute", time.Date(2025, 8, 25, 15, 29, 0, 0, loc), true},
		{"saturday", time.Date(2025, 8, 23, 11, 0, 0, 0, loc), false},
		{"sunday", time.Date(2025, 8, 24, 11, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IsOpen(tc.at); got != tc.open {
				t.Errorf("IsOpen(%v) = %v, want %v", tc.at, got, tc.open)
			}
		})
	}
}

func TestFallbackConvertsZone(t *testing.T) {
	c := fallbackChecker(t)
	// 05:30 UTC on a weekday is 11:00 IST, inside the session
	at := time.Date(2025, 8, 25, 5, 30, 0, 0, time.UTC)
	if !c.IsOpen(at) {
		t.Error("expected open for 11:00 IST expressed in UTC")
	}
}

func TestNewUnknownMICFallsBack(t *testing.T) {
	c := New("nonexistent-mic")
	if !c.fallback {
		t.Fatal("expected fallback checker for unknown MIC")
	}
}
