package query

import "github.com/ekaya-inc/ekaya-query-engine/pkg/convert"

// Formatter turns a converted value into its display string. It is not
// called for null values.
type Formatter func(value any) (string, error)

// Calculator computes a calculated attribute from the row mapped so far.
type Calculator func(row *Row, qc *Context) (any, error)

// SecurityCheck reports whether principal may see attribute. It is evaluated
// for every row and never cached across principals.
type SecurityCheck func(attribute string, principal any) bool

// Attribute is one named, typed field of a query result.
type Attribute struct {
	Name string
	Type convert.Type

	// Column is the result column alias. It defaults to Name and must be
	// empty for calculated attributes.
	Column string

	Filterable bool
	Sortable   bool
	PrimaryKey bool

	// Hidden attributes are only returned when selected explicitly.
	Hidden bool

	Calculated bool
	Calculator Calculator

	// SortBy names the attribute or column a calculated attribute sorts by.
	SortBy string

	// Operators restricts the filter operators allowed. Empty allows all.
	Operators []Operator

	Formatter   Formatter
	Security    SecurityCheck
	Description string
}

// AllowsOperator reports whether op may be used to filter on a.
func (a *Attribute) AllowsOperator(op Operator) bool {
	if len(a.Operators) == 0 {
		return op.Valid()
	}
	for _, allowed := range a.Operators {
		if allowed == op {
			return true
		}
	}
	return false
}

// Parameter is a named, typed input of a query.
type Parameter struct {
	Name     string
	Type     convert.Type
	Required bool
	Default  any

	// Validate rejects a converted value. Process may replace it before binding.
	Validate func(value any) error
	Process  func(value any) (any, error)

	Description string
}

// Criteria is a SQL fragment injected at its --Name placeholder when it applies.
type Criteria struct {
	Name string

	// SQL is the fragment text; Generate builds it per execution instead.
	SQL      string
	Generate func(qc *Context) (string, error)

	// Condition decides whether the criteria applies. When nil it applies
	// if every parameter in Params has a value.
	Condition func(qc *Context) bool

	// Params are the bind parameters the fragment references. Extracted from
	// SQL when empty.
	Params []string

	// Priority orders application; lower first, ties by declaration order.
	Priority int

	// SecurityRelevant marks criteria worth auditing, e.g. row-level access rules.
	SecurityRelevant bool

	// Lookup marks criteria that narrow the result to a single row by key.
	Lookup bool
}

// AppliedCriteria records one criteria injected into an execution.
type AppliedCriteria struct {
	Name             string         `json:"name"`
	SQL              string         `json:"sql"`
	Params           map[string]any `json:"params,omitempty"`
	SecurityRelevant bool           `json:"security_relevant,omitempty"`
}

// PreProcessor runs after validation and before SQL is built.
type PreProcessor func(qc *Context) error

// RowProcessor runs for every mapped row.
type RowProcessor func(row *Row, qc *Context) error

// PostProcessor runs once the result is complete.
type PostProcessor func(result *Result, qc *Context) error

// AttributeSchema describes an attribute in result metadata.
type AttributeSchema struct {
	Name        string       `json:"name"`
	Type        convert.Type `json:"type"`
	Filterable  bool         `json:"filterable"`
	Sortable    bool         `json:"sortable"`
	PrimaryKey  bool         `json:"primary_key"`
	Calculated  bool         `json:"calculated"`
	Description string       `json:"description,omitempty"`
}

func (a *Attribute) schema() AttributeSchema {
	return AttributeSchema{
		Name:        a.Name,
		Type:        a.Type,
		Filterable:  a.Filterable,
		Sortable:    a.Sortable,
		PrimaryKey:  a.PrimaryKey,
		Calculated:  a.Calculated,
		Description: a.Description,
	}
}
