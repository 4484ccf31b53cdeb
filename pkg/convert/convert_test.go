package convert

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_Nil(t *testing.T) {
	for _, target := range []Type{String, Integer, Long, Float, Double, Decimal, Boolean, Date, DateTime, Time, Binary, Object} {
		v, err := Convert(nil, target)
		require.NoError(t, err, target)
		assert.Nil(t, v, target)
	}
}

func TestConvert_Success(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

	tests := []struct {
		name   string
		value  any
		target Type
		want   any
	}{
		{"string identity", "abc", String, "abc"},
		{"bytes to string", []byte("abc"), String, "abc"},
		{"int to string", 42, String, "42"},
		{"float to string", 1.5, String, "1.5"},
		{"decimal to string", decimal.RequireFromString("12.50"), String, "12.5"},
		{"date to string", civil.Date{Year: 2024, Month: 3, Day: 9}, String, "2024-03-09"},
		{"bool to string", true, String, "true"},

		{"int64 to integer", int64(7), Integer, 7},
		{"string to integer", " 12 ", Integer, 12},
		{"float truncates to integer", 9.99, Integer, 9},
		{"decimal text to integer", "42.0", Integer, 42},
		{"int32 to long", int32(5), Long, int64(5)},
		{"uint64 to long", uint64(9), Long, int64(9)},
		{"decimal to long", decimal.RequireFromString("1234.9"), Long, int64(1234)},

		{"int to double", 3, Double, float64(3)},
		{"float32 to double", float32(0.5), Double, float64(0.5)},
		{"string to double", "2.25", Double, 2.25},
		{"decimal to double", decimal.RequireFromString("0.125"), Double, 0.125},
		{"double to float", 0.5, Float, float32(0.5)},

		{"int to decimal", int64(50000), Decimal, decimal.NewFromInt(50000)},
		{"string to decimal", "0.15", Decimal, decimal.RequireFromString("0.15")},
		{"float to decimal", 0.25, Decimal, decimal.NewFromFloat(0.25)},

		{"bool identity", false, Boolean, false},
		{"TRUE literal", "TRUE", Boolean, true},
		{"False literal", "False", Boolean, false},
		{"1 literal", "1", Boolean, true},
		{"0 literal", "0", Boolean, false},
		{"numeric 1", int64(1), Boolean, true},
		{"numeric 0", 0, Boolean, false},
		{"float 1", 1.0, Boolean, true},
		{"decimal 0", decimal.RequireFromString("0.00"), Boolean, false},

		{"date literal", "2024-03-09", Date, civil.Date{Year: 2024, Month: 3, Day: 9}},
		{"datetime narrows to date", civil.DateTime{Date: civil.Date{Year: 2024, Month: 3, Day: 9}, Time: civil.Time{Hour: 10}}, Date, civil.Date{Year: 2024, Month: 3, Day: 9}},
		{"time.Time to date", ts, Date, civil.Date{Year: 2024, Month: 3, Day: 9}},

		{"datetime T literal", "2024-03-09T14:30:05", DateTime, civil.DateTimeOf(ts)},
		{"datetime space literal", "2024-03-09 14:30:05", DateTime, civil.DateTimeOf(ts)},
		{"datetime rfc3339", "2024-03-09T14:30:05Z", DateTime, civil.DateTimeOf(ts)},
		{"date widens to midnight", civil.Date{Year: 2024, Month: 3, Day: 9}, DateTime, civil.DateTime{Date: civil.Date{Year: 2024, Month: 3, Day: 9}}},
		{"time.Time to datetime", ts, DateTime, civil.DateTimeOf(ts)},

		{"time literal", "14:30:05", Time, civil.Time{Hour: 14, Minute: 30, Second: 5}},
		{"time.Time to time", ts, Time, civil.Time{Hour: 14, Minute: 30, Second: 5}},

		{"string to binary", "ab", Binary, []byte("ab")},
		{"object passthrough", struct{ X int }{1}, Object, struct{ X int }{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.value, tt.target)
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				require.IsType(t, decimal.Decimal{}, got)
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v want %v", got, d)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		target Type
	}{
		{"yes is not a boolean", "yes", Boolean},
		{"2 is not a boolean", 2, Boolean},
		{"empty string is not a boolean", "", Boolean},
		{"bad integer", "twelve", Integer},
		{"fractional text to integer", "42.9", Integer},
		{"fractional text to long", "42.9", Long},
		{"exponent text to long", "1e3", Long},
		{"fractional float is not a boolean", 1.5, Boolean},
		{"fractional decimal is not a boolean", decimal.RequireFromString("0.5"), Boolean},
		{"integer overflow", int64(math.MaxInt32) + 1, Integer},
		{"uint64 overflow", uint64(math.MaxUint64), Long},
		{"NaN to long", math.NaN(), Long},
		{"bad decimal", "1,5", Decimal},
		{"bool to decimal", true, Decimal},
		{"non-strict date", "03/09/2024", Date},
		{"datetime text is not a date", "2024-03-09 10:00:00", Date},
		{"bad datetime", "2024-03-09 at noon", DateTime},
		{"int to date", 20240309, Date},
		{"int to binary", 1, Binary},
		{"unknown target", "x", Type("uuid")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.value, tt.target)
			require.Error(t, err)
			assert.Nil(t, got)

			var convErr *Error
			require.True(t, errors.As(err, &convErr))
			assert.Equal(t, tt.target, convErr.Target)
		})
	}
}

func TestConvert_UnsupportedIsDetectable(t *testing.T) {
	_, err := Convert(struct{}{}, Date)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"", String},
		{"string", String},
		{"INT", Integer},
		{"bigint", Long},
		{"Decimal", Decimal},
		{"timestamp", DateTime},
		{"bool", Boolean},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.True(t, got.Valid())
	}

	_, err := ParseType("uuid")
	assert.Error(t, err)
}

func TestForDatabaseType(t *testing.T) {
	tests := map[string]Type{
		"VARCHAR(255)":                String,
		"character varying":           String,
		"NVARCHAR":                    String,
		"int4":                        Integer,
		"INTEGER":                     Integer,
		"int8":                        Long,
		"BIGINT":                      Long,
		"float4":                      Float,
		"float8":                      Double,
		"REAL":                        Double,
		"NUMERIC(10,2)":               Decimal,
		"NUMBER":                      Decimal,
		"money":                       Decimal,
		"bool":                        Boolean,
		"BIT":                         Boolean,
		"DATE":                        Date,
		"timestamp without time zone": DateTime,
		"DATETIME2":                   DateTime,
		"TIME":                        Time,
		"bytea":                       Binary,
		"VARBINARY":                   Binary,
		"timestamptz":                 Object,
		"DATETIMEOFFSET":              Object,
		"geometry":                    Object,
	}
	for in, want := range tests {
		assert.Equal(t, want, ForDatabaseType(in), in)
	}
}
