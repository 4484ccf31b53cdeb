package query

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/testhelpers"
)

func compiled(t *testing.T, def *Definition) *Definition {
	t.Helper()
	require.NoError(t, def.compile())
	return def
}

// totalCompensation is salary plus commission; a null commission leaves the
// salary unchanged.
func totalCompensation(row *Row, _ *Context) (any, error) {
	salary, ok := row.Decimal("salary")
	if !ok {
		return nil, nil
	}
	pct, ok := row.Decimal("commissionPct")
	if !ok {
		return salary, nil
	}
	return salary.Add(salary.Mul(pct)), nil
}

func employeesDefinition() *Definition {
	return &Definition{
		Name: "employees",
		SQL: `SELECT id, first_name, last_name, email, salary, commission_pct, hire_date, department_id
FROM employees
WHERE 1=1
  --byDepartment
  --byId`,
		Attributes: []Attribute{
			{Name: "id", Type: convert.Long, PrimaryKey: true, Filterable: true, Sortable: true},
			{Name: "firstName", Column: "first_name", Filterable: true, Sortable: true},
			{Name: "lastName", Column: "last_name", Filterable: true, Sortable: true},
			{Name: "email", Hidden: true},
			{Name: "salary", Type: convert.Decimal, Filterable: true, Sortable: true},
			{Name: "commissionPct", Column: "commission_pct", Type: convert.Decimal},
			{Name: "hireDate", Column: "hire_date", Type: convert.Date, Filterable: true, Sortable: true},
			{Name: "totalCompensation", Type: convert.Decimal, Calculated: true, Calculator: totalCompensation},
		},
		Parameters: []Parameter{
			{Name: "departmentId", Type: convert.Long},
			{Name: "employeeId", Type: convert.Long},
		},
		Criteria: []Criteria{
			{Name: "byDepartment", SQL: "AND department_id = :departmentId"},
			{Name: "byId", SQL: "AND id = :employeeId", Lookup: true},
		},
		Paginated:       true,
		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
}

// newMockEngine returns an engine over a sqlmock database using ? markers.
func newMockEngine(t *testing.T, cfg Config) (*Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ds := datasource.New(db, datasource.Registration{
		Info:       datasource.AdapterInfo{Type: "mock", DriverName: "sqlmock"},
		BindStyle:  enginesql.BindQuestion,
		Pagination: "standard",
	}, zap.NewNop())

	e, err := New(ds, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, mock
}

// newEmployeesEngine returns an engine over a seeded SQLite database with
// the employees definition registered.
func newEmployeesEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	e, err := New(testhelpers.SQLiteEmployees(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	require.NoError(t, e.Register(t.Context(), employeesDefinition()))
	return e
}
