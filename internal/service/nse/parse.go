package nse

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"optionpulse/internal/domain/models"
)

// nseTimeLayout is the timestamp format in chain payloads, IST wall time.
const nseTimeLayout = "02-Jan-2006 15:04:05"

// Numeric unmarshals NSE numeric fields, which arrive as numbers, quoted
// numbers with thousands separators, "-", "N/A" or null. Absent values
// decode to NaN.
type Numeric float64

func (n *Numeric) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*n = Numeric(math.NaN())
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var q string
		if err := json.Unmarshal(b, &q); err != nil {
			*n = Numeric(math.NaN())
			return nil
		}
		*n = Numeric(cleanNumeric(q))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Numeric(math.NaN())
		return nil
	}
	*n = Numeric(f)
	return nil
}

// cleanNumeric parses a numeric string, stripping thousands separators.
// Placeholder values come back as NaN.
func cleanNumeric(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	switch s {
	case "", "-", "N/A", "NA":
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

type rawQuote struct {
	OpenInterest         Numeric `json:"openInterest"`
	ChangeInOpenInterest Numeric `json:"changeinOpenInterest"`
	TotalTradedVolume    Numeric `json:"totalTradedVolume"`
	ImpliedVolatility    Numeric `json:"impliedVolatility"`
	LastPrice            Numeric `json:"lastPrice"`
	BidPrice             Numeric `json:"bidprice"`
	AskPrice             Numeric `json:"askPrice"`
}

type rawRow struct {
	StrikePrice Numeric   `json:"strikePrice"`
	ExpiryDate  string    `json:"expiryDate"`
	CE          *rawQuote `json:"CE"`
	PE          *rawQuote `json:"PE"`
}

type rawChain struct {
	Records struct {
		Data            []rawRow `json:"data"`
		ExpiryDates     []string `json:"expiryDates"`
		UnderlyingValue Numeric  `json:"underlyingValue"`
		Timestamp       string   `json:"timestamp"`
	} `json:"records"`
}

// ParseChain decodes a raw option-chain payload into a Snapshot for the
// nearest expiry, strikes sorted ascending. An empty data section maps to
// market_closed; a present but unusable payload maps to malformed_snapshot.
func ParseChain(body []byte, symbol string) (*models.Snapshot, error) {
	var raw rawChain
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, models.MalformedSnapshot("chain payload is not valid JSON")
	}
	if len(raw.Records.Data) == 0 {
		return nil, models.MarketClosed("empty option chain payload")
	}

	spot := float64(raw.Records.UnderlyingValue)
	if math.IsNaN(spot) || spot <= 0 {
		return nil, models.MalformedSnapshot("missing underlying value")
	}

	expiry := ""
	if len(raw.Records.ExpiryDates) > 0 {
		expiry = raw.Records.ExpiryDates[0]
	}

	strikes := make([]models.StrikeRow, 0, len(raw.Records.Data))
	for _, r := range raw.Records.Data {
		if expiry != "" && r.ExpiryDate != expiry {
			continue
		}
		strike := float64(r.StrikePrice)
		if math.IsNaN(strike) {
			continue
		}
		if r.CE == nil && r.PE == nil {
			continue
		}
		strikes = append(strikes, toStrikeRow(strike, r.CE, r.PE))
	}
	if len(strikes) == 0 {
		return nil, models.MalformedSnapshot("no usable strikes for nearest expiry")
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Strike < strikes[j].Strike })

	return &models.Snapshot{
		Symbol:    symbol,
		Timestamp: parseChainTimestamp(raw.Records.Timestamp),
		Spot:      spot,
		Strikes:   strikes,
	}, nil
}

func toStrikeRow(strike float64, ce, pe *rawQuote) models.StrikeRow {
	row := models.StrikeRow{
		Strike:       strike,
		CallOI:       math.NaN(),
		CallChangeOI: math.NaN(),
		CallVolume:   math.NaN(),
		CallIV:       math.NaN(),
		CallLTP:      math.NaN(),
		CallBid:      math.NaN(),
		CallAsk:      math.NaN(),
		PutOI:        math.NaN(),
		PutChangeOI:  math.NaN(),
		PutVolume:    math.NaN(),
		PutIV:        math.NaN(),
		PutLTP:       math.NaN(),
		PutBid:       math.NaN(),
		PutAsk:       math.NaN(),
	}
	if ce != nil {
		row.CallOI = float64(ce.OpenInterest)
		row.CallChangeOI = float64(ce.ChangeInOpenInterest)
		row.CallVolume = float64(ce.TotalTradedVolume)
		row.CallIV = float64(ce.ImpliedVolatility)
		row.CallLTP = float64(ce.LastPrice)
		row.CallBid = float64(ce.BidPrice)
		row.CallAsk = float64(ce.AskPrice)
	}
	if pe != nil {
		row.PutOI = float64(pe.OpenInterest)
		row.PutChangeOI = float64(pe.ChangeInOpenInterest)
		row.PutVolume = float64(pe.TotalTradedVolume)
		row.PutIV = float64(pe.ImpliedVolatility)
		row.PutLTP = float64(pe.LastPrice)
		row.PutBid = float64(pe.BidPrice)
		row.PutAsk = float64(pe.AskPrice)
	}
	return row
}

func parseChainTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	t, err := time.ParseInLocation(nseTimeLayout, s, loc)
	if err != nil {
		return time.Now()
	}
	return t
}
