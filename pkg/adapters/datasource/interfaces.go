// Package datasource owns database connectivity for the query engine: the
// adapter registry each driver package registers into, the pooled
// Datasource handle, bind-style translation and result metadata discovery.
package datasource

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrDescribeUnsupported is returned by Describe when the adapter has no
	// way to describe a statement without executing it.
	ErrDescribeUnsupported = errors.New("statement description not supported by driver")

	// ErrNoMetadata is returned when a describe call succeeded but produced
	// no result columns, typically because parameter types could not be inferred.
	ErrNoMetadata = errors.New("driver returned no result metadata")

	// ErrUnknownType is returned by Open and FromDB for unregistered adapter types.
	ErrUnknownType = errors.New("unknown datasource type")
)

// ColumnInfo describes a result column with its driver-reported type name.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// StatementDescriber returns the result columns of a statement without
// executing it.
//
// sqlText is already in the adapter's bind style. args is nil on the first
// attempt; when the driver cannot infer parameter types the caller retries
// once with type-appropriate dummy values so implementations can declare
// parameter types from them.
type StatementDescriber interface {
	DescribeStatement(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]ColumnInfo, error)
}

// DescriberFunc adapts a function to StatementDescriber.
type DescriberFunc func(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]ColumnInfo, error)

func (f DescriberFunc) DescribeStatement(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]ColumnInfo, error) {
	return f(ctx, db, sqlText, args)
}

// ColumnsFromRows reads column names and database type names from an open
// result set. It works for empty result sets.
func ColumnsFromRows(rows *sql.Rows) ([]ColumnInfo, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]ColumnInfo, len(types))
	for i, ct := range types {
		columns[i] = ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	return columns, nil
}
