package models

// Dynamic attribute naming values for QueryDefinition.DynamicNaming
const (
	NamingIdentity = "identity" // column name unchanged
	NamingCamel    = "camel"    // HIRE_DATE -> hireDate
	NamingSnake    = "snake"    // HireDate -> hire_date
)

// QueryFile is a YAML/JSON document holding query definitions.
type QueryFile struct {
	Queries []QueryDefinition `json:"queries" yaml:"queries"`
}

// QueryDefinition is the serializable form of a registered query.
// Function-valued behaviour (calculators, formatters, security checks) is
// referenced by name and resolved when the definition is compiled.
type QueryDefinition struct {
	Name              string           `json:"name" yaml:"name"`
	Description       string           `json:"description,omitempty" yaml:"description,omitempty"`
	SQL               string           `json:"sql" yaml:"sql"`
	Paginated         bool             `json:"paginated,omitempty" yaml:"paginated,omitempty"`
	DefaultPageSize   int              `json:"default_page_size,omitempty" yaml:"default_page_size,omitempty"`
	MaxPageSize       int              `json:"max_page_size,omitempty" yaml:"max_page_size,omitempty"`
	DynamicAttributes bool             `json:"dynamic_attributes,omitempty" yaml:"dynamic_attributes,omitempty"`
	DynamicNaming     string           `json:"dynamic_naming,omitempty" yaml:"dynamic_naming,omitempty"`
	StatementTimeout  string           `json:"statement_timeout,omitempty" yaml:"statement_timeout,omitempty"` // Go duration, e.g. "5s"
	Attributes        []QueryAttribute `json:"attributes" yaml:"attributes"`
	Parameters        []QueryParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Criteria          []QueryCriteria  `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// QueryAttribute is one field of a query result.
type QueryAttribute struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`     // string, integer, long, decimal, date, datetime, ...
	Column      string   `json:"column,omitempty" yaml:"column,omitempty"` // defaults to name; empty for calculated
	Filterable  bool     `json:"filterable,omitempty" yaml:"filterable,omitempty"`
	Sortable    bool     `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	PrimaryKey  bool     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Hidden      bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Calculated  bool     `json:"calculated,omitempty" yaml:"calculated,omitempty"`
	Calculator  string   `json:"calculator,omitempty" yaml:"calculator,omitempty"`
	SortBy      string   `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`
	Operators   []string `json:"operators,omitempty" yaml:"operators,omitempty"`
	Formatter   string   `json:"formatter,omitempty" yaml:"formatter,omitempty"`
	Security    string   `json:"security,omitempty" yaml:"security,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// QueryParameter defines a single parameter for a parameterized query.
type QueryParameter struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"` // nil if no default
}

// QueryCriteria is a SQL fragment injected at its --name placeholder.
// Without a condition it applies when every parameter it references has a value.
type QueryCriteria struct {
	Name             string   `json:"name" yaml:"name"`
	SQL              string   `json:"sql" yaml:"sql"`
	Params           []string `json:"params,omitempty" yaml:"params,omitempty"`
	Priority         int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	SecurityRelevant bool     `json:"security_relevant,omitempty" yaml:"security_relevant,omitempty"`
	Lookup           bool     `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}
