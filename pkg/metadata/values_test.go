package metadata

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
)

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 15, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		typ  convert.Type
		want any
	}{
		{"nil", nil, convert.Long, nil},
		{"int32 widens", int32(7), convert.Integer, int64(7)},
		{"uint8 widens", uint8(7), convert.Integer, int64(7)},
		{"float32 widens", float32(1.5), convert.Double, float64(1.5)},
		{"numeric text", "1234.50", convert.Decimal, decimal.RequireFromString("1234.50")},
		{"integer bytes", []byte("42"), convert.Integer, int64(42)},
		{"char bytes", []byte("Smith"), convert.String, "Smith"},
		{"unparseable text kept", "n/a", convert.Decimal, "n/a"},
		{"date", ts, convert.Date, civil.Date{Year: 2024, Month: 3, Day: 15}},
		{"timestamp", ts, convert.DateTime, civil.DateTimeOf(ts)},
		{"timestamptz kept", ts, convert.Object, ts},
		{"int64 unchanged", int64(9), convert.Long, int64(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValue(tt.raw, tt.typ)
			if d, ok := tt.want.(decimal.Decimal); ok {
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValue_CopiesBinary(t *testing.T) {
	buf := []byte{1, 2, 3}
	got := NormalizeValue(buf, convert.Binary).([]byte)
	buf[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, got)
}
