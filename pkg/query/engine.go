// Package query is the dynamic query engine: definitions register once and
// execute many times with runtime parameters, filters, sorts, field
// selection and pagination.
package query

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/audit"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Datasource is the database surface the engine runs statements on.
// *datasource.Datasource satisfies it.
type Datasource interface {
	metadata.Introspector
	QueryScalar(ctx context.Context, sqlText string, params map[string]any, dest any) error
}

// Config tunes an Engine.
type Config struct {
	// Dialect names the pagination dialect. Empty uses the datasource's
	// default, then "standard".
	Dialect string

	// DefaultPageSize and MaxPageSize apply to paginated definitions that
	// leave their own unset.
	DefaultPageSize int
	MaxPageSize     int

	// StatementTimeout bounds each database call of definitions without
	// their own timeout. Zero means no timeout.
	StatementTimeout time.Duration

	AsyncWorkers int

	// RejectSuspiciousValues turns libinjection hits on bound values into
	// validation violations instead of warnings.
	RejectSuspiciousValues bool

	// BuildMetadataOnRegister builds each definition's metadata cache during
	// Register rather than on first execution.
	BuildMetadataOnRegister bool

	// TolerateMissingMetadata lets definitions whose cache cannot be built
	// execute with live result metadata instead of failing.
	TolerateMissingMetadata bool

	PrewarmConcurrency int
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize:    50,
		MaxPageSize:        1000,
		StatementTimeout:   30 * time.Second,
		AsyncWorkers:       8,
		PrewarmConcurrency: 4,
	}
}

// Engine registers query definitions and executes them. It is safe for
// concurrent use; each execution owns its Context.
type Engine struct {
	registry *Registry
	ds       Datasource
	builder  *Builder
	meta     *metadata.Builder
	cfg      Config
	logger   *zap.Logger
	auditor  *audit.SecurityAuditor

	asyncMu     sync.RWMutex
	async       *pool.Pool
	asyncClosed bool
}

// New creates an engine over ds.
func New(ds Datasource, cfg Config, logger *zap.Logger) (*Engine, error) {
	logger = logging.OrNop(logger).Named("query")

	defaults := DefaultConfig()
	if cfg.AsyncWorkers <= 0 {
		cfg.AsyncWorkers = defaults.AsyncWorkers
	}
	if cfg.PrewarmConcurrency <= 0 {
		cfg.PrewarmConcurrency = defaults.PrewarmConcurrency
	}

	name := cfg.Dialect
	if name == "" {
		if p, ok := ds.(interface{ Pagination() string }); ok {
			name = p.Pagination()
		}
	}
	if name == "" {
		name = StandardDialect{}.Name()
	}
	dialect, err := DialectByName(name)
	if err != nil {
		return nil, err
	}
	cfg.Dialect = name

	return &Engine{
		registry: NewRegistry(),
		ds:       ds,
		builder:  NewBuilder(dialect, logger),
		meta:     metadata.NewBuilder(ds, logger),
		cfg:      cfg,
		logger:   logger,
		auditor:  audit.NewSecurityAuditor(logger),
		async:    pool.New().WithMaxGoroutines(cfg.AsyncWorkers),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the engine's definition registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Register validates def and adds it to the registry. Registering the same
// *Definition again is a no-op; a different definition with a taken name
// fails with apperrors.ErrDuplicateQuery. Definition problems are reported
// together as an *apperrors.DefinitionError.
func (e *Engine) Register(ctx context.Context, def *Definition) error {
	if def == nil {
		return errors.New("register: nil definition")
	}
	if existing, err := e.registry.Get(def.Name); err == nil {
		if existing == def {
			return nil
		}
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateQuery, def.Name)
	}

	if def.Paginated {
		if def.MaxPageSize == 0 {
			def.MaxPageSize = e.cfg.MaxPageSize
		}
		if def.DefaultPageSize == 0 {
			def.DefaultPageSize = e.cfg.DefaultPageSize
			if def.MaxPageSize > 0 && def.DefaultPageSize > def.MaxPageSize {
				def.DefaultPageSize = def.MaxPageSize
			}
		}
	}
	if err := def.compile(); err != nil {
		return err
	}

	if e.cfg.BuildMetadataOnRegister {
		if _, err := e.ensureCache(ctx, def); err != nil {
			if !e.cfg.TolerateMissingMetadata {
				return fmt.Errorf("register %s: %w", def.Name, err)
			}
			e.logger.Warn("Metadata cache unavailable; executions will use live result metadata",
				zap.String("query", def.Name),
				zap.String("error", logging.SanitizeError(err)))
		}
	} else {
		e.checkColumns(def)
	}

	added, err := e.registry.add(def)
	if err != nil {
		return err
	}
	if added {
		e.logger.Info("Registered query",
			zap.String("query", def.Name),
			zap.Int("attributes", len(def.Attributes)),
			zap.Int("criteria", len(def.Criteria)))
	}
	return nil
}

// checkColumns warns about attributes whose column does not appear in a
// statically parsed select list. Metadata discovery stays authoritative.
func (e *Engine) checkColumns(def *Definition) {
	parsed := enginesql.ParseSelectColumns(def.compiledSQL)
	if parsed == nil {
		return
	}
	columns := make(map[string]bool, len(parsed))
	for _, c := range parsed {
		columns[strings.ToLower(c.Name)] = true
	}
	for _, a := range def.Attributes {
		if !a.Calculated && !columns[strings.ToLower(a.Column)] {
			e.logger.Warn("Attribute column not found in select list",
				zap.String("query", def.Name),
				zap.String("attribute", a.Name),
				zap.String("column", a.Column))
		}
	}
}

// Query starts an execution of the named definition.
func (e *Engine) Query(name string) (*Context, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return newContext(def, e), nil
}

// Definitions returns every registered definition in registration order.
func (e *Engine) Definitions() []*Definition {
	return e.registry.Definitions()
}

// Prewarm builds the metadata cache of every registered definition that
// lacks one. Failures are aggregated into a *metadata.PrewarmError.
func (e *Engine) Prewarm(ctx context.Context) error {
	var targets []metadata.Target
	defs := make(map[string]*Definition)
	for _, def := range e.registry.Definitions() {
		if def.Cache() == nil {
			targets = append(targets, def.metadataTarget())
			defs[def.Name] = def
		}
	}
	if len(targets) == 0 {
		return nil
	}

	caches, err := e.meta.Prewarm(ctx, targets, e.cfg.PrewarmConcurrency)
	for name, cache := range caches {
		defs[name].cache.CompareAndSwap(nil, cache)
	}
	return err
}

// ensureCache returns the definition's metadata cache, building it once.
func (e *Engine) ensureCache(ctx context.Context, def *Definition) (*metadata.Cache, error) {
	if c := def.cache.Load(); c != nil {
		return c, nil
	}

	def.buildMu.Lock()
	defer def.buildMu.Unlock()
	if c := def.cache.Load(); c != nil {
		return c, nil
	}

	ctx, cancel := e.withTimeout(ctx, def)
	defer cancel()

	c, err := e.meta.Build(ctx, def.metadataTarget())
	if err != nil {
		return nil, err
	}
	def.cache.Store(c)
	return c, nil
}

// Execute runs qc and returns its result. Failures are reported in the
// result; Execute never panics on database or row errors.
func (e *Engine) Execute(ctx context.Context, qc *Context) *Result {
	qc.startedAt = time.Now()
	res := e.execute(ctx, qc)
	qc.finishedAt = time.Now()

	res.Metadata = e.resultMetadata(qc, res)
	if res.Success {
		e.logger.Debug("Query executed",
			zap.String("query", qc.def.Name),
			zap.String("execution_id", qc.executionID.String()),
			zap.Int("rows", len(res.Rows)),
			zap.Duration("elapsed", qc.finishedAt.Sub(qc.startedAt)))
	} else {
		e.logger.Error("Query execution failed",
			zap.String("query", qc.def.Name),
			zap.String("execution_id", qc.executionID.String()),
			zap.String("code", res.Failure.Code),
			zap.String("error", res.Failure.Message),
			zap.Duration("elapsed", qc.finishedAt.Sub(qc.startedAt)))
	}
	return res
}

func (e *Engine) execute(ctx context.Context, qc *Context) *Result {
	def := qc.def

	if violations := e.validate(qc); len(violations) > 0 {
		codes := make([]string, len(violations))
		for i, v := range violations {
			codes[i] = v.Code
		}
		e.auditor.LogValidationFailure(qc.auditExecution(), codes)
		return failed(def.Name, apperrors.CodeValidationFailed,
			&apperrors.ValidationError{Query: def.Name, Violations: violations})
	}

	for _, pre := range def.PreProcessors {
		if err := pre(qc); err != nil {
			return failed(def.Name, apperrors.CodeProcessorFailed, fmt.Errorf("pre-processor: %w", err))
		}
	}

	stmt, err := e.builder.Build(def, qc)
	if err != nil {
		return failed(def.Name, apperrors.CodeBuildFailed, err)
	}
	qc.applied = stmt.Applied
	e.auditor.LogSecurityCriteria(qc.auditExecution(), securityCriteria(stmt.Applied))

	var cache *metadata.Cache
	if qc.useCache {
		cache, err = e.ensureCache(ctx, def)
		if err != nil {
			if !e.cfg.TolerateMissingMetadata {
				return failed(def.Name, apperrors.CodeMetadataFailed, err)
			}
			e.logger.Warn("Metadata cache unavailable; using live result metadata",
				zap.String("query", def.Name),
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	if qc.includeMetadata && qc.effectiveWindow() != nil {
		total, err := e.count(ctx, def, qc)
		if err != nil {
			return failed(def.Name, failureCode(err), err)
		}
		qc.totalCount = &total
	}

	rows, err := e.run(ctx, def, qc, stmt, cache)
	if err != nil {
		var perr *processorError
		if errors.As(err, &perr) {
			return failed(def.Name, apperrors.CodeProcessorFailed, err)
		}
		return failed(def.Name, failureCode(err), err)
	}

	res := &Result{Success: true, Rows: rows}
	for _, post := range def.PostProcessors {
		if err := post(res, qc); err != nil {
			return failed(def.Name, apperrors.CodeProcessorFailed, fmt.Errorf("post-processor: %w", err))
		}
	}
	return res
}

func (e *Engine) count(ctx context.Context, def *Definition, qc *Context) (int64, error) {
	stmt, err := e.builder.BuildCount(def, qc)
	if err != nil {
		return 0, err
	}
	ctx, cancel := e.withTimeout(ctx, def)
	defer cancel()

	var total int64
	if err := e.ds.QueryScalar(ctx, stmt.SQL, stmt.Params, &total); err != nil {
		return 0, fmt.Errorf("count query: %w", withDeadline(ctx, err))
	}
	return total, nil
}

// securityCriteria lists the applied criteria flagged for audit.
func securityCriteria(applied []AppliedCriteria) []audit.CriteriaDetails {
	var out []audit.CriteriaDetails
	for _, c := range applied {
		if c.SecurityRelevant {
			out = append(out, audit.CriteriaDetails{Name: c.Name, Params: slices.Sorted(maps.Keys(c.Params))})
		}
	}
	return out
}

type processorError struct{ err error }

func (e *processorError) Error() string { return "row processor: " + e.err.Error() }
func (e *processorError) Unwrap() error { return e.err }

// run executes the statement and maps every row in result order.
func (e *Engine) run(ctx context.Context, def *Definition, qc *Context, stmt *Statement, cache *metadata.Cache) ([]*Row, error) {
	ctx, cancel := e.withTimeout(ctx, def)
	defer cancel()

	rows, err := e.ds.QueryContext(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, withDeadline(ctx, err)
	}
	defer rows.Close()

	if cache == nil {
		if cache, err = liveCache(def, rows, stmt.ExtraColumns); err != nil {
			return nil, err
		}
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	m := newMapper(def, qc, cache, e.logger)
	var out []*Row
	for rows.Next() {
		values, err := m.scan(rows, len(columns))
		if err != nil {
			return nil, err
		}
		row := m.mapRow(values, len(out))
		for _, proc := range def.RowProcessors {
			if err := proc(row, qc); err != nil {
				return nil, &processorError{err: err}
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", withDeadline(ctx, err))
	}
	if out == nil {
		out = []*Row{}
	}
	return out, nil
}

// ExecuteSingle runs qc and returns its only row. The definition must have
// lookup criteria. No rows fails with apperrors.ErrNotFound and more than
// one with apperrors.ErrNotSingleRow.
func (e *Engine) ExecuteSingle(ctx context.Context, qc *Context) (*Row, error) {
	def := qc.def
	if !def.SupportsSingleLookup() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSingleLookupUnsupported, def.Name)
	}

	qc.single = true
	qc.includeMetadata = false
	res := e.Execute(ctx, qc)
	if err := res.Err(); err != nil {
		return nil, err
	}
	switch len(res.Rows) {
	case 0:
		return nil, fmt.Errorf("query %s: %w", def.Name, apperrors.ErrNotFound)
	case 1:
		return res.Rows[0], nil
	}
	return nil, fmt.Errorf("query %s returned %d rows: %w", def.Name, len(res.Rows), apperrors.ErrNotSingleRow)
}

func (e *Engine) resultMetadata(qc *Context, res *Result) *ResultMetadata {
	md := &ResultMetadata{
		Query:       qc.def.Name,
		ExecutionID: qc.executionID,
		StartedAt:   qc.startedAt,
		ElapsedMS:   qc.finishedAt.Sub(qc.startedAt).Milliseconds(),
		RowCount:    len(res.Rows),
	}
	if !qc.includeMetadata || !res.Success {
		return md
	}

	md.TotalCount = qc.totalCount
	md.Window = qc.effectiveWindow()
	md.AppliedCriteria = qc.AppliedCriteria()
	md.Filters = qc.Filters()
	md.Sorts = qc.Sorts()
	for i := range qc.def.Attributes {
		if a := &qc.def.Attributes[i]; qc.includes(a) {
			md.Schema = append(md.Schema, a.schema())
		}
	}
	return md
}

func (e *Engine) withTimeout(ctx context.Context, def *Definition) (context.Context, context.CancelFunc) {
	if d := statementTimeout(def, e.cfg.StatementTimeout); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func statementTimeout(def *Definition, fallback time.Duration) time.Duration {
	if def.StatementTimeout > 0 {
		return def.StatementTimeout
	}
	return fallback
}

// withDeadline marks err as a timeout when ctx expired, since drivers do not
// all wrap context.DeadlineExceeded.
func withDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.CodeTimeout
	case errors.Is(err, apperrors.ErrMetadataUnavailable):
		return apperrors.CodeMetadataFailed
	}
	return apperrors.CodeExecutionFailed
}
