package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Datasource is a pooled database handle plus the adapter behaviour the
// engine needs: bind style translation and statement description. It is safe
// for concurrent use.
type Datasource struct {
	db         *sql.DB
	dsType     string
	bindStyle  enginesql.BindStyle
	pagination string
	describer  StatementDescriber
	logger     *zap.Logger
}

// New wraps an open *sql.DB with the behaviour of reg.
func New(db *sql.DB, reg Registration, logger *zap.Logger) *Datasource {
	return &Datasource{
		db:         db,
		dsType:     reg.Info.Type,
		bindStyle:  reg.BindStyle,
		pagination: reg.Pagination,
		describer:  reg.Describer,
		logger:     logging.OrNop(logger).Named("datasource").With(zap.String("type", reg.Info.Type)),
	}
}

// FromDB wraps an open *sql.DB using the registered adapter for dsType.
func FromDB(db *sql.DB, dsType string, logger *zap.Logger) (*Datasource, error) {
	reg, ok := Lookup(dsType)
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownType, dsType, registeredTypes())
	}
	return New(db, reg, logger), nil
}

// Type returns the adapter type, e.g. "postgres".
func (d *Datasource) Type() string { return d.dsType }

// DB returns the underlying pool.
func (d *Datasource) DB() *sql.DB { return d.db }

// BindStyle returns the placeholder syntax of the driver.
func (d *Datasource) BindStyle() enginesql.BindStyle { return d.bindStyle }

// Pagination returns the adapter's default pagination dialect name.
func (d *Datasource) Pagination() string { return d.pagination }

// CanDescribe reports whether the adapter can describe statements without executing them.
func (d *Datasource) CanDescribe() bool { return d.describer != nil }

// Bind rewrites :name markers into the driver's style and orders args.
func (d *Datasource) Bind(sqlText string, params map[string]any) (string, []any, error) {
	return enginesql.SubstituteParameters(sqlText, driverValues(params), d.bindStyle)
}

// driverValues converts calendar types, which most drivers reject as bind
// arguments, into time.Time (UTC) or "HH:MM:SS" text.
func driverValues(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch x := v.(type) {
		case civil.Date:
			out[k] = x.In(time.UTC)
		case civil.DateTime:
			out[k] = x.In(time.UTC)
		case civil.Time:
			out[k] = x.String()
		default:
			out[k] = v
		}
	}
	return out
}

// QueryContext binds params and runs the query.
func (d *Datasource) QueryContext(ctx context.Context, sqlText string, params map[string]any) (*sql.Rows, error) {
	bound, args, err := d.Bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Executing query",
		zap.String("sql", logging.SanitizeQuery(bound)),
		zap.Int("args", len(args)))

	rows, err := d.db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

// QueryScalar runs a query expected to return one row with one column and
// scans it into dest.
func (d *Datasource) QueryScalar(ctx context.Context, sqlText string, params map[string]any, dest any) error {
	bound, args, err := d.Bind(sqlText, params)
	if err != nil {
		return err
	}
	if err := d.db.QueryRowContext(ctx, bound, args...).Scan(dest); err != nil {
		return fmt.Errorf("execute scalar query: %w", err)
	}
	return nil
}

// Describe returns the result columns of sqlText without executing it.
// With nil params every marker is bound without a value and the driver must
// infer parameter types; otherwise params supply (dummy) values whose types
// the describer may use.
func (d *Datasource) Describe(ctx context.Context, sqlText string, params map[string]any) ([]ColumnInfo, error) {
	if d.describer == nil {
		return nil, ErrDescribeUnsupported
	}

	values := params
	if values == nil {
		names := enginesql.ExtractParameters(sqlText)
		values = make(map[string]any, len(names))
		for _, name := range names {
			values[name] = nil
		}
	}

	bound, args, err := d.Bind(sqlText, values)
	if err != nil {
		return nil, err
	}
	if params == nil {
		args = nil
	}

	columns, err := d.describer.DescribeStatement(ctx, d.db, bound, args)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, ErrNoMetadata
	}
	return columns, nil
}

// Ping verifies the pool can reach the database.
func (d *Datasource) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases all pooled connections.
func (d *Datasource) Close() error {
	return d.db.Close()
}
