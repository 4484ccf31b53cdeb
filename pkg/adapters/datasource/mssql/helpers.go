package mssql

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// normalizeTypeName turns a system_type_name such as "nvarchar(50)" or
// "decimal(10,2)" into the bare upper-case name the driver reports for the
// same column through database/sql, e.g. "NVARCHAR" or "DECIMAL".
func normalizeTypeName(systemTypeName string) string {
	name := strings.TrimSpace(systemTypeName)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

// declareType returns the T-SQL type used to declare a parameter bound to v.
func declareType(v any) string {
	switch v.(type) {
	case string:
		return "nvarchar(max)"
	case int, int32:
		return "int"
	case int64:
		return "bigint"
	case float32, float64:
		return "float"
	case decimal.Decimal:
		return "decimal(38,10)"
	case bool:
		return "bit"
	case time.Time:
		return "datetimeoffset"
	case civil.Date:
		return "date"
	case civil.DateTime:
		return "datetime2"
	case civil.Time:
		return "time"
	case []byte:
		return "varbinary(max)"
	default:
		return "sql_variant"
	}
}

// paramDeclarations builds the @params argument for sp_describe_first_result_set,
// e.g. "@p1 nvarchar(max), @p2 bigint".
func paramDeclarations(args []any) string {
	decls := make([]string, len(args))
	for i, arg := range args {
		decls[i] = fmt.Sprintf("@p%d %s", i+1, declareType(arg))
	}
	return strings.Join(decls, ", ")
}
