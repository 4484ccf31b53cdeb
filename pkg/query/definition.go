package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Definition is a named, parameterized query. Fill it in and pass it to
// Engine.Register; it must not be modified afterwards. Apart from the one-time
// metadata cache attachment a registered Definition is read-only and shared
// by all executions.
type Definition struct {
	Name        string
	Description string

	// SQL is a single SELECT with :name bind markers and --criteria placeholders.
	SQL string

	// Attributes are mapped and calculated in declaration order. A calculator
	// may read calculated attributes declared before its own.
	Attributes []Attribute
	Parameters []Parameter
	Criteria   []Criteria

	Paginated       bool
	DefaultPageSize int
	MaxPageSize     int

	// DynamicAttributes surfaces result columns no attribute maps, named by DynamicNaming.
	DynamicAttributes bool
	DynamicNaming     Naming

	// StatementTimeout bounds each database call. Zero uses the engine default.
	StatementTimeout time.Duration

	PreProcessors  []PreProcessor
	RowProcessors  []RowProcessor
	PostProcessors []PostProcessor

	attrIndex      map[string]int
	paramIndex     map[string]int
	criteriaParams [][]string
	criteriaOrder  []int
	compiledSQL    string
	hasLookup      bool

	buildMu sync.Mutex
	cache   atomic.Pointer[metadata.Cache]
}

var reservedParamRegex = regexp.MustCompile(`^(filter_|page_(limit|offset|end)$)`)

// compile validates the definition and builds its lookup tables. Every
// problem is reported, not just the first.
func (d *Definition) compile() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(d.Name) == "" {
		addf("name is required")
	}

	result := enginesql.ValidateAndNormalize(d.SQL)
	if result.Error != nil {
		addf("sql: %v", result.Error)
	} else {
		d.SQL = result.NormalizedSQL
	}

	d.compileAttributes(addf)
	d.compileParameters(addf)
	d.compileCriteria(addf)

	if d.DefaultPageSize < 0 || d.MaxPageSize < 0 {
		addf("page sizes must not be negative")
	}
	if d.MaxPageSize > 0 && d.DefaultPageSize > d.MaxPageSize {
		addf("default page size %d exceeds max page size %d", d.DefaultPageSize, d.MaxPageSize)
	}
	if d.DynamicNaming == "" {
		d.DynamicNaming = NamingIdentity
	} else if !d.DynamicNaming.Valid() {
		addf("unknown dynamic attribute naming %q", d.DynamicNaming)
	}

	if len(problems) > 0 {
		return &apperrors.DefinitionError{Query: d.Name, Problems: problems}
	}

	d.compiledSQL = enginesql.CleanupSQL(enginesql.StripPlaceholders(d.SQL))
	return nil
}

func (d *Definition) compileAttributes(addf func(string, ...any)) {
	d.attrIndex = make(map[string]int, len(d.Attributes))
	for i := range d.Attributes {
		a := &d.Attributes[i]
		if a.Name == "" {
			addf("attribute %d: name is required", i)
			continue
		}
		if _, dup := d.attrIndex[a.Name]; dup {
			addf("attribute %q: duplicate name", a.Name)
			continue
		}
		d.attrIndex[a.Name] = i

		if a.Type == "" {
			a.Type = convert.String
		} else if !a.Type.Valid() {
			addf("attribute %q: unknown type %q", a.Name, a.Type)
		}
		for _, op := range a.Operators {
			if !op.Valid() {
				addf("attribute %q: unknown operator %q", a.Name, op)
			}
		}

		if !a.Calculated {
			if a.Column == "" {
				a.Column = a.Name
			}
			if a.Calculator != nil {
				addf("attribute %q: calculator set on a non-calculated attribute", a.Name)
			}
			continue
		}

		if a.Column != "" {
			addf("attribute %q: calculated attributes have no column", a.Name)
		}
		if a.PrimaryKey {
			addf("attribute %q: calculated attributes cannot be primary keys", a.Name)
		}
		if a.Filterable {
			addf("attribute %q: calculated attributes cannot be filterable", a.Name)
		}
		if a.Sortable && a.SortBy == "" {
			addf("attribute %q: calculated attributes are sortable only with SortBy", a.Name)
		}
		if a.Calculator == nil {
			addf("attribute %q: calculated attributes need a calculator", a.Name)
		}
	}

	for i := range d.Attributes {
		a := &d.Attributes[i]
		if a.SortBy == "" {
			continue
		}
		if target, ok := d.Attribute(a.SortBy); ok && target.Calculated {
			addf("attribute %q: SortBy %q is itself calculated", a.Name, a.SortBy)
		}
	}
}

func (d *Definition) compileParameters(addf func(string, ...any)) {
	d.paramIndex = make(map[string]int, len(d.Parameters))
	for i := range d.Parameters {
		p := &d.Parameters[i]
		if p.Name == "" {
			addf("parameter %d: name is required", i)
			continue
		}
		if _, dup := d.paramIndex[p.Name]; dup {
			addf("parameter %q: duplicate name", p.Name)
			continue
		}
		if reservedParamRegex.MatchString(p.Name) {
			addf("parameter %q: name is reserved", p.Name)
		}
		d.paramIndex[p.Name] = i

		if p.Type == "" {
			p.Type = convert.String
		} else if !p.Type.Valid() {
			addf("parameter %q: unknown type %q", p.Name, p.Type)
			continue
		}
		if p.Default != nil {
			v, err := convert.Convert(p.Default, p.Type)
			if err != nil {
				addf("parameter %q: default %v: %v", p.Name, p.Default, err)
			} else {
				p.Default = v
			}
		}
	}

	if undefined := enginesql.UndefinedParameters(enginesql.StripPlaceholders(d.SQL), d.parameterNames()); len(undefined) > 0 {
		addf("sql references undefined parameters: %s", strings.Join(undefined, ", "))
	}
}

func (d *Definition) compileCriteria(addf func(string, ...any)) {
	d.criteriaParams = make([][]string, len(d.Criteria))
	seen := make(map[string]bool, len(d.Criteria))
	defined := d.parameterNames()

	for i := range d.Criteria {
		c := &d.Criteria[i]
		if c.Name == "" {
			addf("criteria %d: name is required", i)
			continue
		}
		if seen[c.Name] {
			addf("criteria %q: duplicate name", c.Name)
			continue
		}
		seen[c.Name] = true

		if !enginesql.HasPlaceholder(d.SQL, c.Name) {
			addf("criteria %q: placeholder --%s not found in sql", c.Name, c.Name)
		}
		if c.SQL == "" && c.Generate == nil {
			addf("criteria %q: sql or generator is required", c.Name)
		}
		if c.Lookup {
			d.hasLookup = true
		}

		params := c.Params
		if len(params) == 0 {
			params = enginesql.ExtractParameters(c.SQL)
		}
		d.criteriaParams[i] = params

		var undefined []string
		for _, name := range params {
			if _, ok := d.paramIndex[name]; !ok {
				undefined = append(undefined, name)
			}
		}
		undefined = append(undefined, enginesql.UndefinedParameters(c.SQL, defined)...)
		if len(undefined) > 0 {
			addf("criteria %q: references undefined parameters: %s", c.Name, strings.Join(dedupe(undefined), ", "))
		}
	}

	d.criteriaOrder = make([]int, len(d.Criteria))
	for i := range d.criteriaOrder {
		d.criteriaOrder[i] = i
	}
	sort.SliceStable(d.criteriaOrder, func(a, b int) bool {
		return d.Criteria[d.criteriaOrder[a]].Priority < d.Criteria[d.criteriaOrder[b]].Priority
	})
}

func (d *Definition) parameterNames() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// Attribute returns the attribute named name.
func (d *Definition) Attribute(name string) (*Attribute, bool) {
	i, ok := d.attrIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Attributes[i], true
}

// Parameter returns the parameter named name.
func (d *Definition) Parameter(name string) (*Parameter, bool) {
	i, ok := d.paramIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Parameters[i], true
}

// CompiledSQL returns the base SQL with every criteria placeholder removed.
// It is the statement whose result shape the metadata cache describes.
func (d *Definition) CompiledSQL() string { return d.compiledSQL }

// SupportsSingleLookup reports whether any criteria is marked Lookup.
func (d *Definition) SupportsSingleLookup() bool { return d.hasLookup }

// Cache returns the attached metadata cache, or nil before it is built.
func (d *Definition) Cache() *metadata.Cache { return d.cache.Load() }

// metadataTarget describes the definition to the metadata builder.
func (d *Definition) metadataTarget() metadata.Target {
	params := make(map[string]convert.Type, len(d.Parameters))
	for _, p := range d.Parameters {
		params[p.Name] = p.Type
	}
	attrs := make([]metadata.Attribute, len(d.Attributes))
	for i, a := range d.Attributes {
		attrs[i] = metadata.Attribute{Name: a.Name, Column: a.Column, Calculated: a.Calculated}
	}
	return metadata.Target{
		Name:       d.Name,
		SQL:        d.compiledSQL,
		Params:     params,
		Attributes: attrs,
	}
}

// Schema describes every attribute in declaration order.
func (d *Definition) Schema() []AttributeSchema {
	out := make([]AttributeSchema, len(d.Attributes))
	for i := range d.Attributes {
		out[i] = d.Attributes[i].schema()
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
