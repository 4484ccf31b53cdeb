package query

import (
	"fmt"
	"strings"
)

// Operator is a filter comparison. Names are matched case-sensitively.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpLike               Operator = "LIKE"
	OpNotLike            Operator = "NOT_LIKE"
	OpContains           Operator = "CONTAINS"
	OpStartsWith         Operator = "STARTS_WITH"
	OpEndsWith           Operator = "ENDS_WITH"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT_IN"
	OpBetween            Operator = "BETWEEN"
	OpIsNull             Operator = "IS_NULL"
	OpIsNotNull          Operator = "IS_NOT_NULL"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEquals, OpNotEquals,
	OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
	OpLike, OpNotLike, OpContains, OpStartsWith, OpEndsWith,
	OpIn, OpNotIn, OpBetween, OpIsNull, OpIsNotNull,
}

var comparisonSQL = map[Operator]string{
	OpEquals:             "=",
	OpNotEquals:          "<>",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
}

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// IsSet reports whether op compares against Filter.Values.
func (op Operator) IsSet() bool { return op == OpIn || op == OpNotIn }

// IsRange reports whether op needs both Filter.Value and Filter.Value2.
func (op Operator) IsRange() bool { return op == OpBetween }

// IsUnary reports whether op takes no value.
func (op Operator) IsUnary() bool { return op == OpIsNull || op == OpIsNotNull }

// IsPattern reports whether op matches text patterns. Pattern values are
// always bound as strings.
func (op Operator) IsPattern() bool {
	switch op {
	case OpLike, OpNotLike, OpContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// Filter restricts results on one attribute.
type Filter struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value,omitempty"`
	Value2    any      `json:"value2,omitempty"`
	Values    []any    `json:"values,omitempty"`
}

func (f Filter) String() string {
	switch {
	case f.Operator.IsUnary():
		return fmt.Sprintf("%s %s", f.Attribute, f.Operator)
	case f.Operator.IsSet():
		return fmt.Sprintf("%s %s %v", f.Attribute, f.Operator, f.Values)
	case f.Operator.IsRange():
		return fmt.Sprintf("%s %s %v AND %v", f.Attribute, f.Operator, f.Value, f.Value2)
	default:
		return fmt.Sprintf("%s %s %v", f.Attribute, f.Operator, f.Value)
	}
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case. Empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// Sort orders results by one attribute.
type Sort struct {
	Attribute string    `json:"attribute"`
	Direction Direction `json:"direction"`
}

// Window is a pagination window expressed as offset and limit.
type Window struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// End returns the exclusive end row of the window.
func (w Window) End() int { return w.Offset + w.Limit }
