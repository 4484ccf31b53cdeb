package metadata

import (
	"context"
	gosql "database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Introspector is the database surface the builder needs. *datasource.Datasource
// satisfies it.
type Introspector interface {
	CanDescribe() bool
	Describe(ctx context.Context, sqlText string, params map[string]any) ([]datasource.ColumnInfo, error)
	QueryContext(ctx context.Context, sqlText string, params map[string]any) (*gosql.Rows, error)
}

// Target is what the builder needs to know about a query definition.
type Target struct {
	Name string

	// SQL is the compiled statement: criteria placeholders removed, :name
	// bind markers intact.
	SQL string

	// Params maps bind parameter names to their declared types, used to pick
	// dummy values when the driver cannot infer parameter types.
	Params map[string]convert.Type

	Attributes []Attribute
}

// Attribute is the part of an attribute definition the cache resolves.
type Attribute struct {
	Name       string
	Column     string
	Calculated bool
}

// Builder discovers column metadata with a fallback chain: describe the
// statement, describe again with dummy parameter values, then execute it
// wrapped so that it returns no rows.
type Builder struct {
	db     Introspector
	logger *zap.Logger
}

// NewBuilder creates a metadata builder over db.
func NewBuilder(db Introspector, logger *zap.Logger) *Builder {
	return &Builder{
		db:     db,
		logger: logging.OrNop(logger).Named("metadata"),
	}
}

// Build discovers the columns of target.SQL and resolves its attributes.
// It fails with apperrors.ErrMetadataUnavailable when every strategy fails;
// there is no partial cache.
func (b *Builder) Build(ctx context.Context, target Target) (*Cache, error) {
	started := time.Now()

	columns, strategy, err := b.discover(ctx, target)
	if err != nil {
		return nil, err
	}

	cache := FromColumns(target, columns, strategy)
	for _, attr := range cache.Unmapped() {
		b.logger.Warn("Attribute column not found in result; values will be null",
			zap.String("query", target.Name),
			zap.String("attribute", attr))
	}

	b.logger.Debug("Built metadata cache",
		zap.String("query", target.Name),
		zap.String("strategy", string(strategy)),
		zap.Int("columns", cache.ColumnCount()),
		zap.Duration("elapsed", time.Since(started)))

	return cache, nil
}

func (b *Builder) discover(ctx context.Context, target Target) ([]datasource.ColumnInfo, Strategy, error) {
	var describeErr error
	if b.db.CanDescribe() {
		columns, err := b.db.Describe(ctx, target.SQL, nil)
		if err == nil {
			return columns, StrategyDescribe, nil
		}
		b.logger.Debug("Describe without parameter types failed; retrying with dummy values",
			zap.String("query", target.Name),
			zap.String("error", logging.SanitizeError(err)))

		columns, err = b.db.Describe(ctx, target.SQL, DummyParams(target))
		if err == nil {
			return columns, StrategyDescribeDummy, nil
		}
		describeErr = err
		b.logger.Debug("Describe with dummy values failed; probing with empty result",
			zap.String("query", target.Name),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		describeErr = datasource.ErrDescribeUnsupported
	}

	columns, err := b.probe(ctx, target)
	if err == nil {
		return columns, StrategyEmptyResult, nil
	}

	return nil, "", fmt.Errorf("%w for query %q: describe: %s; empty-result probe: %s",
		apperrors.ErrMetadataUnavailable, target.Name,
		logging.SanitizeError(describeErr), logging.SanitizeError(err))
}

// probe executes the statement wrapped so no rows come back and reads the
// column metadata off the empty result.
func (b *Builder) probe(ctx context.Context, target Target) ([]datasource.ColumnInfo, error) {
	rows, err := b.db.QueryContext(ctx, EmptyResultSQL(target.SQL), DummyParams(target))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := datasource.ColumnsFromRows(rows)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, datasource.ErrNoMetadata
	}
	return columns, nil
}

// EmptyResultSQL wraps sqlText so it executes fully but returns no rows.
func EmptyResultSQL(sqlText string) string {
	return "SELECT * FROM (\n" + sqlText + "\n) q_meta WHERE 1=0"
}

// DummyParams returns a type-appropriate placeholder value for every bind
// marker in target.SQL.
func DummyParams(target Target) map[string]any {
	names := enginesql.ExtractParameters(target.SQL)
	params := make(map[string]any, len(names))
	now := time.Now()
	for _, name := range names {
		params[name] = DummyValue(target.Params[name], now)
	}
	return params
}

// DummyValue returns the placeholder bound for a parameter of type t.
// Undeclared types get a string.
func DummyValue(t convert.Type, now time.Time) any {
	switch t {
	case convert.Integer, convert.Long:
		return int64(0)
	case convert.Float, convert.Double:
		return float64(0)
	case convert.Decimal:
		return decimal.Zero
	case convert.Boolean:
		return false
	case convert.Date, convert.DateTime, convert.Time:
		return now
	default:
		return "DUMMY"
	}
}

// IsUnavailable reports whether err means metadata could not be discovered.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrMetadataUnavailable)
}
