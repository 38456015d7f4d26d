package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		key   string
		value interface{}
	}{
		{"string", String("sym", "NIFTY"), "sym", "NIFTY"},
		{"int", Int("count", 3), "count", 3},
		{"int64", Int64("elapsed_ms", int64(1500)), "elapsed_ms", int64(1500)},
		{"float64", Float64("spot", 24500.5), "spot", 24500.5},
		{"bool", Bool("open", true), "open", true},
		{"error", Error(errors.New("boom")), "error", "boom"},
		{"duration", Duration("took", 2 * time.Second), "took", 2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, v := tc.field.GetKeyValue()
			if k != tc.key || v != tc.value {
				t.Errorf("GetKeyValue = (%q, %v), want (%q, %v)", k, v, tc.key, tc.value)
			}
		})
	}
}

func TestInt64FieldSerializes(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ev := zl.Info()
	Int64("pending", 9_000_000_000).AddTo(ev)
	ev.Send()

	if !strings.Contains(buf.String(), `"pending":9000000000`) {
		t.Errorf("output = %s, missing int64 field", buf.String())
	}
}
