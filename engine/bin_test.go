package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/razeghi71/kqlmock/parser"
	"github.com/razeghi71/kqlmock/table"
)

func TestBinValue(t *testing.T) {
	ts := table.TimeVal(time.Date(2024, 6, 15, 14, 47, 33, 0, time.UTC))

	tests := []struct {
		name     string
		value    table.Value
		interval string
		want     table.Value
	}{
		{"hour", ts, "1h", table.StrVal("2024-06-15T14:00:00Z")},
		{"three hours", ts, "3h", table.StrVal("2024-06-15T12:00:00Z")},
		{"quarter hour", ts, "15m", table.StrVal("2024-06-15T14:45:00Z")},
		{"half minute", ts, "30s", table.StrVal("2024-06-15T14:47:30Z")},
		{"day", ts, "1d", table.StrVal("2024-06-15")},
		{"week", ts, "7d", table.StrVal("2024-06-13")},
		{"fractional hour", ts, "0.5h", table.StrVal("2024-06-15T14:30:00Z")},
		{"timestamp string", table.StrVal("2024-06-15T14:47:33Z"), "1h", table.StrVal("2024-06-15T14:00:00Z")},
		{"offset is normalized", table.StrVal("2024-06-15T16:47:33+02:00"), "1h", table.StrVal("2024-06-15T14:00:00Z")},
		{"numeric", table.IntVal(47), "10", table.StrVal("40")},
		{"numeric float", table.FloatVal(-2.5), "1", table.StrVal("-3")},
		{"numeric string", table.StrVal("12.5"), "5", table.StrVal("10")},
		{"number with time interval", table.IntVal(47), "1h", table.Null()},
		{"text", table.StrVal("n/a"), "1h", table.Null()},
		{"null", table.Null(), "1d", table.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, ok := parser.ParseInterval(tt.interval)
			assert.True(t, ok)
			got := binValue(tt.value, iv)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, binValue(tt.value, iv))
		})
	}
}

func TestBinBeforeEpoch(t *testing.T) {
	v := table.TimeVal(time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC))
	iv, _ := parser.ParseInterval("1d")
	assert.Equal(t, table.StrVal("1969-12-31"), binValue(v, iv))
}
