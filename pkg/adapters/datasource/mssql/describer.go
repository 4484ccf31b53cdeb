package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

const describeWithoutParams = "EXEC sp_describe_first_result_set @tsql = @stmt"

const describeWithParams = "EXEC sp_describe_first_result_set @tsql = @stmt, @params = @decl"

// describeStatement asks the server for the first result set shape of
// sqlText. Without args the server deduces parameter types itself; with args
// each @pN is declared from the Go type of its dummy value.
func describeStatement(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]datasource.ColumnInfo, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if args == nil {
		rows, err = db.QueryContext(ctx, describeWithoutParams, sql.Named("stmt", sqlText))
	} else {
		rows, err = db.QueryContext(ctx, describeWithParams,
			sql.Named("stmt", sqlText),
			sql.Named("decl", paramDeclarations(args)))
	}
	if err != nil {
		return nil, fmt.Errorf("describe statement: %w", err)
	}
	defer rows.Close()

	return scanDescribeRows(rows)
}

// scanDescribeRows reads name and system_type_name from the
// sp_describe_first_result_set output, skipping hidden browse-mode columns.
func scanDescribeRows(rows *sql.Rows) ([]datasource.ColumnInfo, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{"is_hidden": -1, "name": -1, "system_type_name": -1}
	for i, n := range names {
		if _, ok := idx[n]; ok {
			idx[n] = i
		}
	}
	if idx["name"] < 0 || idx["system_type_name"] < 0 {
		return nil, fmt.Errorf("unexpected describe result columns: %v", names)
	}

	var columns []datasource.ColumnInfo
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan describe row: %w", err)
		}
		if i := idx["is_hidden"]; i >= 0 {
			if hidden, ok := values[i].(bool); ok && hidden {
				continue
			}
		}
		columns = append(columns, datasource.ColumnInfo{
			Name: asString(values[idx["name"]]),
			Type: normalizeTypeName(asString(values[idx["system_type_name"]])),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
