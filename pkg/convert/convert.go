package convert

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ErrUnsupported is wrapped by Error when no conversion path exists between
// the value's Go type and the target.
var ErrUnsupported = errors.New("unsupported conversion")

// Error describes a failed conversion. The original value is kept so callers
// at the row-mapping boundary can fall back to it.
type Error struct {
	Value  any
	Target Type
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot convert %T(%v) to %s: %v", e.Value, e.Value, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Convert coerces value to target. A nil value converts to nil for every
// target. Values already of the target's Go type are returned unchanged.
func Convert(value any, target Type) (any, error) {
	if value == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch target {
	case Object:
		return value, nil
	case String:
		out, err = toString(value)
	case Integer:
		var n int64
		n, err = toInt64(value)
		if err == nil {
			if n < math.MinInt32 || n > math.MaxInt32 {
				err = fmt.Errorf("value %d overflows integer", n)
			} else {
				out = int(n)
			}
		}
	case Long:
		out, err = toInt64(value)
	case Float:
		var f float64
		f, err = toFloat64(value)
		if err == nil {
			if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
				err = fmt.Errorf("value %g overflows float", f)
			} else {
				out = float32(f)
			}
		}
	case Double:
		out, err = toFloat64(value)
	case Decimal:
		out, err = toDecimal(value)
	case Boolean:
		out, err = toBool(value)
	case Date:
		out, err = toDate(value)
	case DateTime:
		out, err = toDateTime(value)
	case Time:
		out, err = toTime(value)
	case Binary:
		out, err = toBinary(value)
	default:
		err = fmt.Errorf("unknown target type %q", target)
	}

	if err != nil {
		return nil, &Error{Value: value, Target: target, Err: err}
	}
	return out, nil
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		// toString never fails for a string target.
		return fmt.Sprint(value), nil
	}
	return s, nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case decimal.Decimal:
		if v.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || v.LessThan(decimal.NewFromInt(math.MinInt64)) {
			return 0, errors.New("decimal out of range")
		}
		return v.IntPart(), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	}
	return 0, ErrUnsupported
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	// Whole numeric text with a zero fraction, e.g. "42.0" from a NUMBER column.
	if strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("invalid integer literal %q", s)
	}
	d, derr := decimal.NewFromString(s)
	if derr != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid integer literal %q", s)
	}
	return toInt64(d)
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows long", u)
	}
	return int64(u), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %g is not finite", f)
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, fmt.Errorf("value %g overflows long", f)
	}
	return int64(t), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseFloat(string(v))
	case string:
		return parseFloat(v)
	}
	if n, err := toInt64(value); err == nil {
		return float64(n), nil
	}
	return 0, ErrUnsupported
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q", s)
	}
	return f, nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("value %g is not finite", v)
		}
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case []byte:
		return parseDecimal(string(v))
	case string:
		return parseDecimal(v)
	case bool:
		return decimal.Zero, ErrUnsupported
	}
	if n, err := toInt64(value); err == nil {
		return decimal.NewFromInt(n), nil
	}
	return decimal.Zero, ErrUnsupported
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal literal %q", s)
	}
	return d, nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case []byte:
		return parseBool(string(v))
	case string:
		return parseBool(v)
	case float32:
		return floatToBool(float64(v))
	case float64:
		return floatToBool(v)
	case decimal.Decimal:
		if !v.Equal(v.Truncate(0)) {
			return false, fmt.Errorf("numeric boolean must be 0 or 1, got %s", v)
		}
	}
	n, err := toInt64(value)
	if err != nil {
		return false, ErrUnsupported
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("numeric boolean must be 0 or 1, got %d", n)
}

func floatToBool(f float64) (bool, error) {
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("numeric boolean must be 0 or 1, got %g", f)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean literal %q", s)
}

func toDate(value any) (civil.Date, error) {
	switch v := value.(type) {
	case civil.Date:
		return v, nil
	case civil.DateTime:
		return v.Date, nil
	case time.Time:
		return civil.DateOf(v), nil
	case []byte:
		return parseDate(string(v))
	case string:
		return parseDate(v)
	}
	return civil.Date{}, ErrUnsupported
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date literal %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

func toDateTime(value any) (civil.DateTime, error) {
	switch v := value.(type) {
	case civil.DateTime:
		return v, nil
	case civil.Date:
		return civil.DateTime{Date: v}, nil
	case time.Time:
		return civil.DateTimeOf(v), nil
	case []byte:
		return parseDateTime(string(v))
	case string:
		return parseDateTime(v)
	}
	return civil.DateTime{}, ErrUnsupported
}

// parseDateTime accepts "YYYY-MM-DDTHH:MM:SS[.fff]" or the same with a single
// space separator. A trailing zone (RFC 3339) is accepted and dropped after
// converting to the zone's wall clock.
func parseDateTime(s string) (civil.DateTime, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return civil.DateTimeOf(t), nil
	}
	return civil.DateTime{}, fmt.Errorf("invalid datetime literal %q, want YYYY-MM-DDTHH:MM:SS", s)
}

func toTime(value any) (civil.Time, error) {
	switch v := value.(type) {
	case civil.Time:
		return v, nil
	case civil.DateTime:
		return v.Time, nil
	case time.Time:
		return civil.TimeOf(v), nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	return civil.Time{}, ErrUnsupported
}

func parseTime(s string) (civil.Time, error) {
	t, err := civil.ParseTime(strings.TrimSpace(s))
	if err != nil {
		return civil.Time{}, fmt.Errorf("invalid time literal %q, want HH:MM:SS", s)
	}
	return t, nil
}

func toBinary(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, ErrUnsupported
}
