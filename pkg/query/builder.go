package query

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Statement is generated SQL with :name bind markers and the values to bind.
type Statement struct {
	SQL     string
	Params  map[string]any
	Applied []AppliedCriteria

	// ExtraColumns counts trailing result columns added by pagination.
	ExtraColumns int
}

// Builder turns a definition and an execution context into SQL. Building
// never mutates the context, so the same input always yields the same
// statement.
type Builder struct {
	dialect Dialect
	logger  *zap.Logger
}

// NewBuilder creates a builder paginating with dialect.
func NewBuilder(dialect Dialect, logger *zap.Logger) *Builder {
	return &Builder{
		dialect: dialect,
		logger:  logging.OrNop(logger).Named("builder"),
	}
}

// Dialect returns the pagination dialect in use.
func (b *Builder) Dialect() Dialect { return b.dialect }

// Build produces the statement for qc: criteria injection, placeholder
// cleanup, filters, sorts, then pagination.
func (b *Builder) Build(def *Definition, qc *Context) (*Statement, error) {
	stmt, err := b.resolve(def, qc)
	if err != nil {
		return nil, err
	}
	if err := b.applyFilters(def, qc, stmt); err != nil {
		return nil, err
	}

	ordered := b.applySorts(def, qc, stmt)

	if w := qc.effectiveWindow(); w != nil {
		paged, params := b.dialect.Paginate(stmt.SQL, *w, ordered)
		stmt.SQL = paged
		maps.Copy(stmt.Params, params)
		if adder, ok := b.dialect.(columnAdder); ok {
			stmt.ExtraColumns = adder.ExtraColumns()
		}
	}
	return stmt, nil
}

// BuildCount produces SELECT COUNT(*) over the criteria-resolved, filtered
// statement. Sorts and pagination do not affect the count.
func (b *Builder) BuildCount(def *Definition, qc *Context) (*Statement, error) {
	stmt, err := b.resolve(def, qc)
	if err != nil {
		return nil, err
	}
	if err := b.applyFilters(def, qc, stmt); err != nil {
		return nil, err
	}
	stmt.SQL = "SELECT COUNT(*) FROM (\n" + stmt.SQL + "\n) q_count"
	return stmt, nil
}

// resolve injects applicable criteria and removes the remaining placeholders.
func (b *Builder) resolve(def *Definition, qc *Context) (*Statement, error) {
	params, err := def.resolveParams(qc)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{SQL: def.SQL, Params: params}
	for _, i := range def.criteriaOrder {
		c := &def.Criteria[i]
		if !enginesql.HasPlaceholder(stmt.SQL, c.Name) {
			continue
		}

		if !b.criteriaApplies(def, qc, c, def.criteriaParams[i], params) {
			stmt.SQL = enginesql.ReplacePlaceholder(stmt.SQL, c.Name, "")
			continue
		}

		fragment := c.SQL
		if c.Generate != nil {
			fragment, err = c.Generate(qc)
			if err != nil {
				return nil, fmt.Errorf("generate criteria %q: %w", c.Name, err)
			}
		}
		stmt.SQL = enginesql.ReplacePlaceholder(stmt.SQL, c.Name, fragment)

		used := make(map[string]any, len(def.criteriaParams[i]))
		for _, name := range def.criteriaParams[i] {
			used[name] = params[name]
		}
		stmt.Applied = append(stmt.Applied, AppliedCriteria{
			Name:             c.Name,
			SQL:              fragment,
			Params:           used,
			SecurityRelevant: c.SecurityRelevant,
		})
	}

	stmt.SQL = enginesql.CleanupSQL(enginesql.StripPlaceholders(stmt.SQL))

	// Optional parameters left without a value bind as NULL.
	for _, name := range enginesql.ExtractParameters(stmt.SQL) {
		if _, ok := stmt.Params[name]; !ok {
			if _, declared := def.Parameter(name); declared {
				stmt.Params[name] = nil
			}
		}
	}
	return stmt, nil
}

func (b *Builder) criteriaApplies(def *Definition, qc *Context, c *Criteria, needs []string, params map[string]any) bool {
	var missing []string
	for _, name := range needs {
		if params[name] == nil {
			missing = append(missing, name)
		}
	}

	if c.Condition == nil {
		return len(missing) == 0
	}
	if !c.Condition(qc) {
		return false
	}
	if len(missing) > 0 {
		b.logger.Warn("Skipping criteria with unbound parameters",
			zap.String("query", def.Name),
			zap.String("criteria", c.Name),
			zap.Strings("missing", missing))
		return false
	}
	return true
}

var bindNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// applyFilters wraps the statement in a derived table filtered by every
// active filter.
func (b *Builder) applyFilters(def *Definition, qc *Context, stmt *Statement) error {
	var fragments []string
	for idx, f := range qc.filters {
		attr, ok := def.Attribute(f.Attribute)
		if !ok || !attr.Filterable || attr.Calculated {
			b.logger.Warn("Skipping filter on unknown or non-filterable attribute",
				zap.String("query", def.Name),
				zap.String("attribute", f.Attribute))
			continue
		}
		if !attr.AllowsOperator(f.Operator) {
			return fmt.Errorf("operator %s not allowed for attribute %q", f.Operator, f.Attribute)
		}

		bind := fmt.Sprintf("filter_%s_%d", bindNameUnsafe.ReplaceAllString(f.Attribute, "_"), idx)
		fragment, params, err := filterFragment(attr, f, bind)
		if err != nil {
			return err
		}
		if fragment == "" {
			continue
		}
		fragments = append(fragments, fragment)
		maps.Copy(stmt.Params, params)
	}

	if len(fragments) > 0 {
		stmt.SQL = "SELECT * FROM (\n" + stmt.SQL + "\n) q_filter\nWHERE " + strings.Join(fragments, "\n  AND ")
	}
	return nil
}

// filterFragment renders one filter. An IN/NOT_IN filter with no values
// renders nothing.
func filterFragment(attr *Attribute, f Filter, bind string) (string, map[string]any, error) {
	col := attr.Column
	op := f.Operator

	if sqlOp, ok := comparisonSQL[op]; ok {
		v, err := filterValue(attr, f, f.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s :%s", col, sqlOp, bind), map[string]any{bind: v}, nil
	}

	switch op {
	case OpLike, OpNotLike:
		v, err := patternValue(f, f.Value, "", "")
		if err != nil {
			return "", nil, err
		}
		not := ""
		if op == OpNotLike {
			not = "NOT "
		}
		return fmt.Sprintf("UPPER(%s) %sLIKE UPPER(:%s)", col, not, bind), map[string]any{bind: v}, nil

	case OpContains, OpStartsWith, OpEndsWith:
		prefix, suffix := "%", "%"
		if op == OpStartsWith {
			prefix = ""
		}
		if op == OpEndsWith {
			suffix = ""
		}
		v, err := patternValue(f, f.Value, prefix, suffix)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s LIKE :%s", col, bind), map[string]any{bind: v}, nil

	case OpIn, OpNotIn:
		if len(f.Values) == 0 {
			return "", nil, nil
		}
		params := make(map[string]any, len(f.Values))
		markers := make([]string, len(f.Values))
		for i, raw := range f.Values {
			v, err := filterValue(attr, f, raw)
			if err != nil {
				return "", nil, err
			}
			name := fmt.Sprintf("%s_%d", bind, i)
			params[name] = v
			markers[i] = ":" + name
		}
		sqlOp := "IN"
		if op == OpNotIn {
			sqlOp = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, sqlOp, strings.Join(markers, ", ")), params, nil

	case OpBetween:
		if f.Value == nil || f.Value2 == nil {
			return "", nil, fmt.Errorf("filter %q: BETWEEN requires both bounds", f.Attribute)
		}
		lo, err := filterValue(attr, f, f.Value)
		if err != nil {
			return "", nil, err
		}
		hi, err := filterValue(attr, f, f.Value2)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s BETWEEN :%s_1 AND :%s_2", col, bind, bind),
			map[string]any{bind + "_1": lo, bind + "_2": hi}, nil

	case OpIsNull:
		return col + " IS NULL", nil, nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil, nil
	}

	return "", nil, fmt.Errorf("filter %q: unsupported operator %q", f.Attribute, op)
}

// filterValue converts a filter operand to the attribute's type.
func filterValue(attr *Attribute, f Filter, raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("filter %q: %s requires a value", f.Attribute, f.Operator)
	}
	v, err := convert.Convert(raw, attr.Type)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", f.Attribute, err)
	}
	return v, nil
}

func patternValue(f Filter, raw any, prefix, suffix string) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("filter %q: %s requires a value", f.Attribute, f.Operator)
	}
	s, err := convert.Convert(raw, convert.String)
	if err != nil {
		return "", fmt.Errorf("filter %q: %w", f.Attribute, err)
	}
	return prefix + s.(string) + suffix, nil
}

// applySorts appends ORDER BY for every valid sort, wrapping the statement
// first when it already ends in its own ORDER BY. It reports whether the
// result is ordered.
func (b *Builder) applySorts(def *Definition, qc *Context, stmt *Statement) bool {
	var terms []string
	for _, s := range qc.sorts {
		col, ok := sortColumn(def, s.Attribute)
		if !ok {
			b.logger.Warn("Skipping sort on unknown or non-sortable attribute",
				zap.String("query", def.Name),
				zap.String("attribute", s.Attribute))
			continue
		}
		dir := s.Direction
		if dir != Desc {
			dir = Asc
		}
		terms = append(terms, col+" "+string(dir))
	}

	if len(terms) == 0 {
		return enginesql.HasTopLevelOrderBy(stmt.SQL)
	}
	if enginesql.HasTopLevelOrderBy(stmt.SQL) {
		stmt.SQL = "SELECT * FROM (\n" + stmt.SQL + "\n) q_sort"
	}
	stmt.SQL += "\nORDER BY " + strings.Join(terms, ", ")
	return true
}

// sortColumn resolves the column to sort by. Calculated attributes sort by
// their SortBy target, which may name another attribute or a raw column.
func sortColumn(def *Definition, name string) (string, bool) {
	attr, ok := def.Attribute(name)
	if !ok || !attr.Sortable {
		return "", false
	}
	if !attr.Calculated {
		return attr.Column, true
	}
	if target, ok := def.Attribute(attr.SortBy); ok {
		return target.Column, true
	}
	return attr.SortBy, true
}
