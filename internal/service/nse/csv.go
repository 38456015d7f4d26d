package nse

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"optionpulse/internal/domain/models"
)

// csvColumns maps exchange CSV headers to StrikeRow fields. Header spelling
// varies between downloads, so lookups are case-insensitive.
var csvColumns = map[string]string{
	"strike price":        "strike",
	"strike":              "strike",
	"calls oi":            "call_oi",
	"calls change in oi":  "call_change_oi",
	"calls volume":        "call_volume",
	"calls iv":            "call_iv",
	"calls ltp":           "call_ltp",
	"calls bid":           "call_bid",
	"calls ask":           "call_ask",
	"puts oi":             "put_oi",
	"puts change in oi":   "put_change_oi",
	"puts volume":         "put_volume",
	"puts iv":             "put_iv",
	"puts ltp":            "put_ltp",
	"puts bid":            "put_bid",
	"puts ask":            "put_ask",
}

// ParseCSV reads a manually downloaded option-chain CSV into a Snapshot.
// The exchange download carries no spot or capture time, so the caller
// supplies both. Rows with an unparseable strike are skipped.
func ParseCSV(r io.Reader, symbol string, spot float64, at time.Time) (*models.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, models.MalformedSnapshot("csv has no header row")
	}

	cols := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if field, ok := csvColumns[key]; ok {
			cols[field] = i
		}
	}
	if _, ok := cols["strike"]; !ok {
		return nil, models.MalformedSnapshot("csv has no strike column")
	}

	field := func(rec []string, name string) float64 {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return math.NaN()
		}
		return cleanNumeric(rec[i])
	}

	var strikes []models.StrikeRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.MalformedSnapshot(fmt.Sprintf("csv read: %v", err))
		}
		strike := field(rec, "strike")
		if math.IsNaN(strike) {
			continue
		}
		strikes = append(strikes, models.StrikeRow{
			Strike:       strike,
			CallOI:       field(rec, "call_oi"),
			CallChangeOI: field(rec, "call_change_oi"),
			CallVolume:   field(rec, "call_volume"),
			CallIV:       field(rec, "call_iv"),
			CallLTP:      field(rec, "call_ltp"),
			CallBid:      field(rec, "call_bid"),
			CallAsk:      field(rec, "call_ask"),
			PutOI:        field(rec, "put_oi"),
			PutChangeOI:  field(rec, "put_change_oi"),
			PutVolume:    field(rec, "put_volume"),
			PutIV:        field(rec, "put_iv"),
			PutLTP:       field(rec, "put_ltp"),
			PutBid:       field(rec, "put_bid"),
			PutAsk:       field(rec, "put_ask"),
		})
	}
	if len(strikes) == 0 {
		return nil, models.MalformedSnapshot("csv has no usable strike rows")
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Strike < strikes[j].Strike })

	return &models.Snapshot{Symbol: symbol, Timestamp: at, Spot: spot, Strikes: strikes}, nil
}
