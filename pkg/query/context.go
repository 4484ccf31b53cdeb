package query

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/audit"
)

// Context is the mutable state of one execution: parameter values, filters,
// sorts, the pagination window and the security principal, plus bookkeeping
// filled in while the query runs. A Context belongs to a single goroutine
// and is discarded once its result is produced.
type Context struct {
	def    *Definition
	engine *Engine

	executionID uuid.UUID
	params      map[string]any
	filters     []Filter
	sorts       []Sort
	window      *Window
	principal   any
	selected    map[string]bool

	includeMetadata bool
	useCache        bool
	single          bool

	startedAt  time.Time
	finishedAt time.Time
	applied    []AppliedCriteria
	totalCount *int64
}

func newContext(def *Definition, engine *Engine) *Context {
	return &Context{
		def:             def,
		engine:          engine,
		executionID:     uuid.New(),
		params:          make(map[string]any),
		includeMetadata: true,
		useCache:        true,
	}
}

// Param sets a parameter value. Nil clears it.
func (qc *Context) Param(name string, value any) *Context {
	if value == nil {
		delete(qc.params, name)
		return qc
	}
	qc.params[name] = value
	return qc
}

// Params sets several parameter values.
func (qc *Context) Params(values map[string]any) *Context {
	for k, v := range values {
		qc.Param(k, v)
	}
	return qc
}

// Where adds a filter. A filter on an attribute that is already filtered
// replaces the earlier one in place.
func (qc *Context) Where(f Filter) *Context {
	for i := range qc.filters {
		if qc.filters[i].Attribute == f.Attribute {
			qc.filters[i] = f
			return qc
		}
	}
	qc.filters = append(qc.filters, f)
	return qc
}

// Filter adds a single-value filter.
func (qc *Context) Filter(attribute string, op Operator, value any) *Context {
	return qc.Where(Filter{Attribute: attribute, Operator: op, Value: value})
}

// Between adds an inclusive range filter.
func (qc *Context) Between(attribute string, low, high any) *Context {
	return qc.Where(Filter{Attribute: attribute, Operator: OpBetween, Value: low, Value2: high})
}

// In adds a set membership filter. An empty set filters nothing.
func (qc *Context) In(attribute string, values ...any) *Context {
	return qc.Where(Filter{Attribute: attribute, Operator: OpIn, Values: values})
}

// OrderBy appends a sort. Sorts apply in the order they are added.
func (qc *Context) OrderBy(attribute string, dir Direction) *Context {
	if dir == "" {
		dir = Asc
	}
	qc.sorts = append(qc.sorts, Sort{Attribute: attribute, Direction: dir})
	return qc
}

// Page requests rows [start, end).
func (qc *Context) Page(start, end int) *Context {
	return qc.Limit(start, end-start)
}

// Limit requests limit rows starting at offset.
func (qc *Context) Limit(offset, limit int) *Context {
	qc.window = &Window{Offset: offset, Limit: limit}
	return qc
}

// As sets the security principal attribute checks are evaluated against.
func (qc *Context) As(principal any) *Context {
	qc.principal = principal
	return qc
}

// Select adds attributes to the output, including hidden ones.
func (qc *Context) Select(attributes ...string) *Context {
	if qc.selected == nil {
		qc.selected = make(map[string]bool, len(attributes))
	}
	for _, a := range attributes {
		qc.selected[a] = true
	}
	return qc
}

// WithoutMetadata skips the count query and result metadata.
func (qc *Context) WithoutMetadata() *Context {
	qc.includeMetadata = false
	return qc
}

// UseMetadataCache toggles the definition's metadata cache. When disabled the
// execution reads column metadata from the live result.
func (qc *Context) UseMetadataCache(enabled bool) *Context {
	qc.useCache = enabled
	return qc
}

// Execute runs the query.
func (qc *Context) Execute(ctx context.Context) *Result {
	return qc.engine.Execute(ctx, qc)
}

// ExecuteSingle runs the query and returns its only row.
func (qc *Context) ExecuteSingle(ctx context.Context) (*Row, error) {
	return qc.engine.ExecuteSingle(ctx, qc)
}

// ExecuteAsync runs the query on the engine's worker pool.
func (qc *Context) ExecuteAsync(ctx context.Context) <-chan *Result {
	return qc.engine.ExecuteAsync(ctx, qc)
}

// Validate reports every problem with the request without running it.
func (qc *Context) Validate() error {
	return qc.engine.Validate(qc)
}

func (qc *Context) Definition() *Definition { return qc.def }
func (qc *Context) ExecutionID() uuid.UUID  { return qc.executionID }
func (qc *Context) Principal() any          { return qc.principal }
func (qc *Context) Filters() []Filter       { return append([]Filter(nil), qc.filters...) }
func (qc *Context) Sorts() []Sort           { return append([]Sort(nil), qc.sorts...) }

func (qc *Context) auditExecution() audit.Execution {
	return audit.Execution{Query: qc.def.Name, ExecutionID: qc.executionID, Principal: qc.principal}
}

// Value returns the raw value supplied for a parameter.
func (qc *Context) Value(name string) (any, bool) {
	v, ok := qc.params[name]
	return v, ok
}

// HasParam reports whether a value was supplied for name.
func (qc *Context) HasParam(name string) bool {
	_, ok := qc.params[name]
	return ok
}

// AppliedCriteria returns the criteria injected by the last build.
func (qc *Context) AppliedCriteria() []AppliedCriteria {
	return append([]AppliedCriteria(nil), qc.applied...)
}

// TotalCount returns the unpaginated row count when it was computed.
func (qc *Context) TotalCount() (int64, bool) {
	if qc.totalCount == nil {
		return 0, false
	}
	return *qc.totalCount, true
}

// effectiveWindow returns the pagination window: the requested one, or the
// definition's default page when it paginates. Nil means no pagination.
func (qc *Context) effectiveWindow() *Window {
	if qc.single || !qc.def.Paginated {
		return nil
	}
	if qc.window != nil {
		w := *qc.window
		return &w
	}
	if qc.def.DefaultPageSize > 0 {
		return &Window{Offset: 0, Limit: qc.def.DefaultPageSize}
	}
	return nil
}

// includes reports whether attribute a appears in the output.
func (qc *Context) includes(a *Attribute) bool {
	return !a.Hidden || qc.selected[a.Name]
}
