package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

var (
	typeMapMu sync.Mutex
	typeMap   = pgtype.NewMap()
)

// describeStatement prepares sqlText as an unnamed statement and reads the
// row description. When args is non-nil their Go types pin the parameter
// OIDs, which resolves "could not determine data type of parameter" errors.
func describeStatement(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]datasource.ColumnInfo, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var paramOIDs []uint32
	if args != nil {
		paramOIDs = make([]uint32, len(args))
		for i, arg := range args {
			paramOIDs[i] = oidForValue(arg)
		}
	}

	var columns []datasource.ColumnInfo
	err = conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		sd, err := c.Conn().PgConn().Prepare(ctx, "", sqlText, paramOIDs)
		if err != nil {
			return err
		}
		columns = make([]datasource.ColumnInfo, len(sd.Fields))
		for i, fd := range sd.Fields {
			columns[i] = datasource.ColumnInfo{
				Name: fd.Name,
				Type: pgTypeNameFromOID(fd.DataTypeOID),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("describe statement: %w", err)
	}
	return columns, nil
}

// oidForValue returns the parameter OID for a dummy bind value. Zero leaves
// the type for the server to infer.
func oidForValue(v any) uint32 {
	switch v.(type) {
	case string:
		return pgtype.TextOID
	case int, int32:
		return pgtype.Int4OID
	case int64:
		return pgtype.Int8OID
	case float32, float64:
		return pgtype.Float8OID
	case decimal.Decimal:
		return pgtype.NumericOID
	case bool:
		return pgtype.BoolOID
	case time.Time:
		return pgtype.TimestamptzOID
	case civil.Date:
		return pgtype.DateOID
	case civil.DateTime:
		return pgtype.TimestampOID
	case []byte:
		return pgtype.ByteaOID
	default:
		return 0
	}
}

// pgTypeNameFromOID maps an OID to the upper-case type name database/sql
// reports for the same column, e.g. "INT4" or "_TEXT" for a text array.
func pgTypeNameFromOID(oid uint32) string {
	typeMapMu.Lock()
	t, ok := typeMap.TypeForOID(oid)
	typeMapMu.Unlock()
	if !ok {
		return "UNKNOWN"
	}
	return strings.ToUpper(t.Name)
}
