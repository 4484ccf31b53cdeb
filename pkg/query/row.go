package query

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
)

// Row is one mapped result row: attribute values in output order plus a
// read-only view of the raw column values. Only the mapper writes to it.
type Row struct {
	index  int
	keys   []string
	values map[string]any
	raw    map[string]any // keyed by lower-cased column name
}

func newRow(index int, capacity int) *Row {
	return &Row{
		index:  index,
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
		raw:    make(map[string]any, capacity),
	}
}

func (r *Row) set(name string, value any) {
	if _, exists := r.values[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Index returns the 0-based position of the row in the result.
func (r *Row) Index() int { return r.index }

// Keys returns attribute names in output order.
func (r *Row) Keys() []string { return append([]string(nil), r.keys...) }

// Has reports whether the row carries attribute name, null or not.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Get returns an attribute value. ok is false when the attribute is absent.
func (r *Row) Get(name string) (value any, ok bool) {
	value, ok = r.values[name]
	return value, ok
}

// IsNull reports whether an attribute is absent or null.
func (r *Row) IsNull(name string) bool {
	return r.values[name] == nil
}

// Raw returns the normalised driver value of a result column, matched
// case-insensitively.
func (r *Row) Raw(column string) (any, bool) {
	v, ok := r.raw[strings.ToLower(column)]
	return v, ok
}

// String returns an attribute as a string. ok is false for null, absent or
// inconvertible values; the same holds for the other typed accessors.
func (r *Row) String(name string) (string, bool) {
	v, ok := r.typed(name, convert.String)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (r *Row) Int64(name string) (int64, bool) {
	v, ok := r.typed(name, convert.Long)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (r *Row) Float64(name string) (float64, bool) {
	v, ok := r.typed(name, convert.Double)
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

func (r *Row) Decimal(name string) (decimal.Decimal, bool) {
	v, ok := r.typed(name, convert.Decimal)
	if !ok {
		return decimal.Zero, false
	}
	return v.(decimal.Decimal), true
}

func (r *Row) Bool(name string) (bool, bool) {
	v, ok := r.typed(name, convert.Boolean)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

func (r *Row) Date(name string) (civil.Date, bool) {
	v, ok := r.typed(name, convert.Date)
	if !ok {
		return civil.Date{}, false
	}
	return v.(civil.Date), true
}

func (r *Row) DateTime(name string) (civil.DateTime, bool) {
	v, ok := r.typed(name, convert.DateTime)
	if !ok {
		return civil.DateTime{}, false
	}
	return v.(civil.DateTime), true
}

func (r *Row) typed(name string, t convert.Type) (any, bool) {
	v := r.values[name]
	if v == nil {
		return nil, false
	}
	out, err := convert.Convert(v, t)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Map returns a copy of the attribute values.
func (r *Row) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the attributes as an object in output order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(jsonValue(r.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue renders calendar types as ISO text; decimal.Decimal already
// marshals as a quoted string.
func jsonValue(v any) any {
	switch x := v.(type) {
	case civil.Date:
		return x.String()
	case civil.DateTime:
		return x.String()
	case civil.Time:
		return x.String()
	}
	return v
}
