package query

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/audit"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Validate checks qc against its definition and returns a
// *apperrors.ValidationError listing every violation, or nil.
func (e *Engine) Validate(qc *Context) error {
	if violations := e.validate(qc); len(violations) > 0 {
		return &apperrors.ValidationError{Query: qc.def.Name, Violations: violations}
	}
	return nil
}

func (e *Engine) validate(qc *Context) []apperrors.Violation {
	v := &violations{}
	def := qc.def

	e.validateParams(qc, v)
	e.validateFilters(qc, v)

	for _, s := range qc.sorts {
		attr, ok := def.Attribute(s.Attribute)
		switch {
		case !ok:
			v.add(apperrors.CodeUnknownAttribute, s.Attribute, "sort on unknown attribute %q", s.Attribute)
		case !attr.Sortable:
			v.add(apperrors.CodeNotSortable, s.Attribute, "attribute %q is not sortable", s.Attribute)
		case s.Direction != Asc && s.Direction != Desc:
			v.add(apperrors.CodeInvalidSort, s.Attribute, "invalid sort direction %q for attribute %q", s.Direction, s.Attribute)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(qc.selected)) {
		if _, ok := def.Attribute(name); !ok {
			v.add(apperrors.CodeUnknownAttribute, name, "selected attribute %q does not exist", name)
		}
	}

	if w := qc.window; w != nil && def.Paginated && !qc.single {
		switch {
		case w.Offset < 0 || w.Limit <= 0:
			v.add(apperrors.CodeInvalidWindow, "window", "invalid pagination window offset %d limit %d", w.Offset, w.Limit)
		case def.MaxPageSize > 0 && w.Limit > def.MaxPageSize:
			v.add(apperrors.CodePageSizeExceeded, "window", "page size %d exceeds maximum %d", w.Limit, def.MaxPageSize)
		}
	}

	return v.list
}

func (e *Engine) validateParams(qc *Context, v *violations) {
	for i := range qc.def.Parameters {
		p := &qc.def.Parameters[i]
		raw, supplied := qc.params[p.Name]
		if !supplied {
			if p.Required && p.Default == nil {
				v.add(apperrors.CodeMissingParameter, p.Name, "required parameter %q is missing", p.Name)
			}
			continue
		}
		if _, err := p.resolve(raw); err != nil {
			v.add(apperrors.CodeInvalidParameter, p.Name, "%v", err)
			continue
		}
		e.checkSuspicious(qc, v, p.Name, raw)
	}
}

func (e *Engine) validateFilters(qc *Context, v *violations) {
	for _, f := range qc.filters {
		attr, ok := qc.def.Attribute(f.Attribute)
		if !ok {
			v.add(apperrors.CodeUnknownAttribute, f.Attribute, "filter on unknown attribute %q", f.Attribute)
			continue
		}
		if !attr.Filterable || attr.Calculated {
			v.add(apperrors.CodeNotFilterable, f.Attribute, "attribute %q is not filterable", f.Attribute)
			continue
		}
		if !f.Operator.Valid() || !attr.AllowsOperator(f.Operator) {
			v.add(apperrors.CodeUnsupportedOperator, f.Attribute,
				"operator %q is not supported for attribute %q", f.Operator, f.Attribute)
			continue
		}
		if _, _, err := filterFragment(attr, f, "filter"); err != nil {
			v.add(apperrors.CodeInvalidFilter, f.Attribute, "%v", err)
			continue
		}

		switch {
		case f.Operator.IsSet():
			e.checkSuspicious(qc, v, f.Attribute, f.Values)
		case f.Operator.IsRange():
			e.checkSuspicious(qc, v, f.Attribute, []any{f.Value, f.Value2})
		case !f.Operator.IsUnary():
			e.checkSuspicious(qc, v, f.Attribute, f.Value)
		}
	}
}

// checkSuspicious flags values libinjection recognises as SQL. Values are
// always bound, so hits only become violations when configured to.
func (e *Engine) checkSuspicious(qc *Context, v *violations, field string, value any) {
	hit := enginesql.CheckValueForInjection(field, value)
	if hit == nil {
		return
	}
	rejected := e.cfg.RejectSuspiciousValues
	if rejected {
		v.add(apperrors.CodeSuspiciousValue, field, "value for %q looks like SQL (fingerprint %s)", field, hit.Fingerprint)
	}
	e.auditor.LogSuspiciousValue(qc.auditExecution(), audit.SuspiciousValueDetails{
		Field:       field,
		Fingerprint: hit.Fingerprint,
		Rejected:    rejected,
	})
}

type violations struct {
	list []apperrors.Violation
}

func (v *violations) add(code, field, format string, args ...any) {
	v.list = append(v.list, apperrors.Violation{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}
