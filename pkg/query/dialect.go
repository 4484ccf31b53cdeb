package query

import "fmt"

// Reserved bind parameter names used by pagination.
const (
	ParamPageLimit  = "page_limit"
	ParamPageOffset = "page_offset"
	ParamPageEnd    = "page_end"
)

// Dialect wraps a statement so it returns one page. Limits are bound as
// parameters, never inlined.
type Dialect interface {
	Name() string
	Paginate(sqlText string, w Window, ordered bool) (string, map[string]any)
}

// StandardDialect uses LIMIT/OFFSET (PostgreSQL, MySQL, SQLite).
type StandardDialect struct{}

func (StandardDialect) Name() string { return "standard" }

func (StandardDialect) Paginate(sqlText string, w Window, _ bool) (string, map[string]any) {
	return sqlText + "\nLIMIT :" + ParamPageLimit + " OFFSET :" + ParamPageOffset,
		map[string]any{ParamPageLimit: int64(w.Limit), ParamPageOffset: int64(w.Offset)}
}

// OffsetFetchDialect uses OFFSET ... FETCH NEXT (SQL Server 2012+). SQL Server
// requires ORDER BY with OFFSET, so an unordered statement gets a neutral one.
type OffsetFetchDialect struct{}

func (OffsetFetchDialect) Name() string { return "offset_fetch" }

func (OffsetFetchDialect) Paginate(sqlText string, w Window, ordered bool) (string, map[string]any) {
	if !ordered {
		sqlText += "\nORDER BY (SELECT NULL)"
	}
	return sqlText + "\nOFFSET :" + ParamPageOffset + " ROWS FETCH NEXT :" + ParamPageLimit + " ROWS ONLY",
		map[string]any{ParamPageLimit: int64(w.Limit), ParamPageOffset: int64(w.Offset)}
}

// RowNumberDialect nests the statement under ROWNUM filters (Oracle 11g and earlier).
type RowNumberDialect struct{}

func (RowNumberDialect) Name() string { return "row_number" }

func (RowNumberDialect) Paginate(sqlText string, w Window, _ bool) (string, map[string]any) {
	wrapped := "SELECT * FROM (SELECT q.*, ROWNUM rnum FROM (\n" + sqlText + "\n) q WHERE ROWNUM <= :" + ParamPageEnd +
		") WHERE rnum > :" + ParamPageOffset
	return wrapped, map[string]any{ParamPageEnd: int64(w.End()), ParamPageOffset: int64(w.Offset)}
}

// ExtraColumns reports the rnum column the wrapper appends to each row.
func (RowNumberDialect) ExtraColumns() int { return 1 }

// columnAdder is implemented by dialects whose wrapper appends result columns.
type columnAdder interface {
	ExtraColumns() int
}

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "standard":
		return StandardDialect{}, nil
	case "offset_fetch":
		return OffsetFetchDialect{}, nil
	case "row_number":
		return RowNumberDialect{}, nil
	}
	return nil, fmt.Errorf("unknown pagination dialect %q", name)
}
