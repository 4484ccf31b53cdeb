package metadata

import (
	"time"

	"github.com/golang-sql/civil"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
)

// NormalizeValue turns a raw driver value into the engine's value domain for
// a column of class t: integers widen to int64, floats to float64, numeric
// text to decimal.Decimal, dates and zone-less timestamps to civil types.
// Byte slices are copied because drivers may reuse the buffer on the next row.
// Values that cannot be normalised are returned unchanged.
func NormalizeValue(raw any, t convert.Type) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []byte:
		if t == convert.Binary || t == convert.Object {
			b := make([]byte, len(v))
			copy(b, v)
			return b
		}
		return normalizeText(string(v), t)
	case string:
		return normalizeText(v, t)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	case float64:
		if t == convert.Decimal {
			return convertOr(v, t)
		}
		return v
	case time.Time:
		switch t {
		case convert.Date:
			return civil.DateOf(v)
		case convert.DateTime:
			return civil.DateTimeOf(v)
		case convert.Time:
			return civil.TimeOf(v)
		}
		return v
	default:
		return raw
	}
}

// normalizeText converts driver text (numeric and temporal types arrive as
// text from several drivers) into the column's class when it parses.
func normalizeText(s string, t convert.Type) any {
	switch t {
	case convert.String, convert.Object, convert.Binary, "":
		return s
	}
	return convertOr(s, t)
}

func convertOr(v any, t convert.Type) any {
	switch t {
	case convert.Integer:
		t = convert.Long
	case convert.Float:
		t = convert.Double
	}
	out, err := convert.Convert(v, t)
	if err != nil {
		return v
	}
	return out
}
