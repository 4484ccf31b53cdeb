package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/models"
)

// Functions resolves the function names a definition document refers to.
type Functions struct {
	Calculators map[string]Calculator
	Formatters  map[string]Formatter
	Security    map[string]SecurityCheck
}

// DefaultFunctions returns the built-in formatters and security checks.
func DefaultFunctions() Functions {
	return Functions{
		Calculators: map[string]Calculator{},
		Formatters: map[string]Formatter{
			"upper":    stringFormatter(strings.ToUpper),
			"lower":    stringFormatter(strings.ToLower),
			"trim":     stringFormatter(strings.TrimSpace),
			"money":    decimalFormatter(2),
			"iso_date": isoDateFormatter,
		},
		Security: map[string]SecurityCheck{
			"authenticated": func(_ string, principal any) bool { return principal != nil },
			"deny":          func(string, any) bool { return false },
		},
	}
}

// Merge returns f with other's entries added, other winning on conflicts.
func (f Functions) Merge(other Functions) Functions {
	out := Functions{
		Calculators: make(map[string]Calculator, len(f.Calculators)+len(other.Calculators)),
		Formatters:  make(map[string]Formatter, len(f.Formatters)+len(other.Formatters)),
		Security:    make(map[string]SecurityCheck, len(f.Security)+len(other.Security)),
	}
	for _, src := range []Functions{f, other} {
		for k, v := range src.Calculators {
			out.Calculators[k] = v
		}
		for k, v := range src.Formatters {
			out.Formatters[k] = v
		}
		for k, v := range src.Security {
			out.Security[k] = v
		}
	}
	return out
}

func stringFormatter(fn func(string) string) Formatter {
	return func(v any) (string, error) {
		s, err := convert.Convert(v, convert.String)
		if err != nil {
			return "", err
		}
		return fn(s.(string)), nil
	}
}

func decimalFormatter(places int32) Formatter {
	return func(v any) (string, error) {
		d, err := convert.Convert(v, convert.Decimal)
		if err != nil {
			return "", err
		}
		return d.(decimal.Decimal).StringFixed(places), nil
	}
}

func isoDateFormatter(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02"), nil
	}
	d, err := convert.Convert(v, convert.Date)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(d), nil
}

// FromModel turns a definition document into a Definition ready for
// Engine.Register. Unknown types, operators and function names are reported
// together.
func FromModel(m models.QueryDefinition, fns Functions) (*Definition, error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	def := &Definition{
		Name:              m.Name,
		Description:       m.Description,
		SQL:               m.SQL,
		Paginated:         m.Paginated,
		DefaultPageSize:   m.DefaultPageSize,
		MaxPageSize:       m.MaxPageSize,
		DynamicAttributes: m.DynamicAttributes,
		DynamicNaming:     Naming(m.DynamicNaming),
	}

	if m.StatementTimeout != "" {
		d, err := time.ParseDuration(m.StatementTimeout)
		if err != nil {
			fail("statement_timeout %q: %v", m.StatementTimeout, err)
		}
		def.StatementTimeout = d
	}

	for _, ma := range m.Attributes {
		a := Attribute{
			Name:        ma.Name,
			Column:      ma.Column,
			Filterable:  ma.Filterable,
			Sortable:    ma.Sortable,
			PrimaryKey:  ma.PrimaryKey,
			Hidden:      ma.Hidden,
			Calculated:  ma.Calculated,
			SortBy:      ma.SortBy,
			Description: ma.Description,
		}
		if ma.Type != "" {
			t, err := convert.ParseType(ma.Type)
			if err != nil {
				fail("attribute %q: %v", ma.Name, err)
			}
			a.Type = t
		}
		for _, op := range ma.Operators {
			a.Operators = append(a.Operators, Operator(strings.ToUpper(op)))
		}
		if ma.Calculator != "" {
			if a.Calculator = fns.Calculators[ma.Calculator]; a.Calculator == nil {
				fail("attribute %q: unknown calculator %q (known: %s)", ma.Name, ma.Calculator, keys(fns.Calculators))
			}
		}
		if ma.Formatter != "" {
			if a.Formatter = fns.Formatters[ma.Formatter]; a.Formatter == nil {
				fail("attribute %q: unknown formatter %q (known: %s)", ma.Name, ma.Formatter, keys(fns.Formatters))
			}
		}
		if ma.Security != "" {
			if a.Security = fns.Security[ma.Security]; a.Security == nil {
				fail("attribute %q: unknown security check %q (known: %s)", ma.Name, ma.Security, keys(fns.Security))
			}
		}
		def.Attributes = append(def.Attributes, a)
	}

	for _, mp := range m.Parameters {
		p := Parameter{
			Name:        mp.Name,
			Required:    mp.Required,
			Default:     mp.Default,
			Description: mp.Description,
		}
		if mp.Type != "" {
			t, err := convert.ParseType(mp.Type)
			if err != nil {
				fail("parameter %q: %v", mp.Name, err)
			}
			p.Type = t
		}
		def.Parameters = append(def.Parameters, p)
	}

	for _, mc := range m.Criteria {
		def.Criteria = append(def.Criteria, Criteria{
			Name:             mc.Name,
			SQL:              mc.SQL,
			Params:           mc.Params,
			Priority:         mc.Priority,
			SecurityRelevant: mc.SecurityRelevant,
			Lookup:           mc.Lookup,
		})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("query %q: %w", m.Name, errors.Join(errs...))
	}
	return def, nil
}

func keys[V any](m map[string]V) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
