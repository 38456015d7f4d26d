package marketcal

import (
	"time"

	"github.com/scmhub/calendar"
)

// Checker answers whether an exchange is open at a given instant, using the
// exchange calendar for the configured MIC (ISO 10383). When no calendar is
// available for the MIC it falls back to Mon-Fri 09:15-15:30 IST, the NSE
// cash session.
type Checker struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

func New(mic string) *Checker {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		loc, err := time.LoadLocation("Asia/Kolkata")
		if err != nil {
			loc = time.FixedZone("IST", 5*3600+1800)
		}
		return &Checker{fallback: true, loc: loc}
	}
	return &Checker{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether date is a business day on the exchange.
func (c *Checker) IsTradingDay(date time.Time) bool {
	if c.loc != nil {
		date = date.In(c.loc)
	}
	if c.fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(date)
}

// IsOpen reports whether the exchange is open at t.
func (c *Checker) IsOpen(t time.Time) bool {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if c.fallback {
		if !c.IsTradingDay(t) {
			return false
		}
		h, m := t.Hour(), t.Minute()
		afterOpen := h > 9 || (h == 9 && m >= 15)
		beforeClose := h < 15 || (h == 15 && m < 30)
		return afterOpen && beforeClose
	}
	return c.cal.IsOpen(t)
}
