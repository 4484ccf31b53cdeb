package metadata

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

const employeesSQL = "SELECT employee_id, last_name, salary, commission_pct FROM employees WHERE dept = :dept"

func employeesTarget() Target {
	return Target{
		Name:   "employees",
		SQL:    employeesSQL,
		Params: map[string]convert.Type{"dept": convert.String},
		Attributes: []Attribute{
			{Name: "id", Column: "employee_id"},
			{Name: "lastName", Column: "last_name"},
			{Name: "salary", Column: "salary"},
			{Name: "commissionPct", Column: "commission_pct"},
			{Name: "totalCompensation", Calculated: true},
		},
	}
}

func employeesColumns() []datasource.ColumnInfo {
	return []datasource.ColumnInfo{
		{Name: "employee_id", Type: "INT4"},
		{Name: "last_name", Type: "VARCHAR"},
		{Name: "salary", Type: "NUMERIC"},
		{Name: "commission_pct", Type: "NUMERIC"},
	}
}

// describingDB adds a scripted statement describer to a sqlmock-backed datasource.
type describingDB struct {
	*datasource.Datasource
	responses []describeResponse
	calls     []map[string]any
}

type describeResponse struct {
	columns []datasource.ColumnInfo
	err     error
}

func (d *describingDB) CanDescribe() bool { return true }

func (d *describingDB) Describe(_ context.Context, _ string, params map[string]any) ([]datasource.ColumnInfo, error) {
	d.calls = append(d.calls, params)
	resp := d.responses[len(d.calls)-1]
	return resp.columns, resp.err
}

func newMockDatasource(t *testing.T) (*datasource.Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := datasource.Registration{
		Info:       datasource.AdapterInfo{Type: "mock"},
		BindStyle:  enginesql.BindQuestion,
		Pagination: "standard",
	}
	return datasource.New(db, reg, zaptest.NewLogger(t)), mock
}

func TestBuild_DescribeSucceeds(t *testing.T) {
	ds, mock := newMockDatasource(t)
	db := &describingDB{Datasource: ds, responses: []describeResponse{{columns: employeesColumns()}}}

	cache, err := NewBuilder(db, zaptest.NewLogger(t)).Build(context.Background(), employeesTarget())
	require.NoError(t, err)

	assert.Equal(t, StrategyDescribe, cache.Strategy())
	assert.Equal(t, 4, cache.ColumnCount())
	require.Len(t, db.calls, 1)
	assert.Nil(t, db.calls[0])
	assert.NoError(t, mock.ExpectationsWereMet(), "describe must not execute anything")
}

func TestBuild_DescribeRetriesWithDummyValues(t *testing.T) {
	ds, _ := newMockDatasource(t)
	db := &describingDB{Datasource: ds, responses: []describeResponse{
		{err: datasource.ErrNoMetadata},
		{columns: employeesColumns()},
	}}

	target := employeesTarget()
	target.SQL = "SELECT employee_id, last_name, salary, commission_pct FROM employees " +
		"WHERE dept = :dept AND salary >= :min_salary AND active = :active AND hired < :hired_before AND grade = :grade"
	target.Params = map[string]convert.Type{
		"dept":         convert.String,
		"min_salary":   convert.Decimal,
		"active":       convert.Boolean,
		"hired_before": convert.Date,
		"grade":        convert.Integer,
	}

	cache, err := NewBuilder(db, zaptest.NewLogger(t)).Build(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, StrategyDescribeDummy, cache.Strategy())

	require.Len(t, db.calls, 2)
	dummy := db.calls[1]
	assert.Equal(t, "DUMMY", dummy["dept"])
	assert.True(t, decimal.Zero.Equal(dummy["min_salary"].(decimal.Decimal)))
	assert.Equal(t, false, dummy["active"])
	assert.IsType(t, time.Time{}, dummy["hired_before"])
	assert.Equal(t, int64(0), dummy["grade"])
}

func TestBuild_FallsBackToEmptyResultProbe(t *testing.T) {
	ds, mock := newMockDatasource(t)
	db := &describingDB{Datasource: ds, responses: []describeResponse{
		{err: datasource.ErrNoMetadata},
		{err: datasource.ErrNoMetadata},
	}}

	mock.ExpectQuery(regexp.QuoteMeta(EmptyResultSQL("SELECT employee_id, last_name, salary, commission_pct FROM employees WHERE dept = ?"))).
		WithArgs("DUMMY").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			mock.NewColumn("employee_id").OfType("INT4", int64(0)),
			mock.NewColumn("last_name").OfType("VARCHAR", ""),
			mock.NewColumn("salary").OfType("NUMERIC", ""),
			mock.NewColumn("commission_pct").OfType("NUMERIC", ""),
		))

	cache, err := NewBuilder(db, zaptest.NewLogger(t)).Build(context.Background(), employeesTarget())
	require.NoError(t, err)

	assert.Equal(t, StrategyEmptyResult, cache.Strategy())
	assert.Equal(t, 4, cache.ColumnCount())
	assert.True(t, cache.Initialized())
	idx, ok := cache.AttributeIndex("salary")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Empty(t, cache.Unmapped())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_WithoutDescriberProbesDirectly(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"employee_id", "last_name", "salary", "commission_pct"}))

	cache, err := NewBuilder(ds, zaptest.NewLogger(t)).Build(context.Background(), employeesTarget())
	require.NoError(t, err)
	assert.Equal(t, StrategyEmptyResult, cache.Strategy())
	assert.Equal(t, 4, cache.ColumnCount())
}

func TestBuild_AllStrategiesFail(t *testing.T) {
	ds, mock := newMockDatasource(t)
	db := &describingDB{Datasource: ds, responses: []describeResponse{
		{err: errors.New("syntax error at or near \"FORM\"")},
		{err: errors.New("syntax error at or near \"FORM\"")},
	}}
	mock.ExpectQuery("WHERE 1=0").WillReturnError(errors.New("syntax error at or near \"FORM\""))

	cache, err := NewBuilder(db, zaptest.NewLogger(t)).Build(context.Background(), employeesTarget())
	require.Error(t, err)
	assert.Nil(t, cache)
	assert.ErrorIs(t, err, apperrors.ErrMetadataUnavailable)
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), `"employees"`)
}

func TestBuild_UnmappedAttributeIsTolerated(t *testing.T) {
	ds, _ := newMockDatasource(t)
	cols := employeesColumns()[:3]
	db := &describingDB{Datasource: ds, responses: []describeResponse{{columns: cols}}}

	cache, err := NewBuilder(db, zaptest.NewLogger(t)).Build(context.Background(), employeesTarget())
	require.NoError(t, err)
	assert.Equal(t, []string{"commissionPct"}, cache.Unmapped())
	_, ok := cache.AttributeIndex("commissionPct")
	assert.False(t, ok)
}

// describingFunc describes statements with a pure function, so it is safe
// for concurrent use.
type describingFunc struct {
	*datasource.Datasource
	describe func(sqlText string) ([]datasource.ColumnInfo, error)
}

func (d *describingFunc) CanDescribe() bool { return true }

func (d *describingFunc) Describe(_ context.Context, sqlText string, _ map[string]any) ([]datasource.ColumnInfo, error) {
	return d.describe(sqlText)
}

func TestPrewarm_AggregatesFailures(t *testing.T) {
	ds, mock := newMockDatasource(t)
	db := &describingFunc{Datasource: ds, describe: func(sqlText string) ([]datasource.ColumnInfo, error) {
		if sqlText == "SELECT broken" {
			return nil, errors.New("relation does not exist")
		}
		return []datasource.ColumnInfo{{Name: "n", Type: "INT4"}}, nil
	}}

	targets := []Target{
		{Name: "ok_one", SQL: "SELECT 1 AS n"},
		{Name: "zeta_broken", SQL: "SELECT broken"},
		{Name: "alpha_broken", SQL: "SELECT broken"},
		{Name: "ok_two", SQL: "SELECT 2 AS n"},
	}

	mock.MatchExpectationsInOrder(false)
	for range 2 {
		mock.ExpectQuery(regexp.QuoteMeta(EmptyResultSQL("SELECT broken"))).
			WillReturnError(errors.New("relation does not exist"))
	}

	caches, err := NewBuilder(db, zaptest.NewLogger(t)).Prewarm(context.Background(), targets, 3)
	require.Error(t, err)

	var perr *PrewarmError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"alpha_broken", "zeta_broken"}, perr.Names())
	assert.Contains(t, err.Error(), "alpha_broken, zeta_broken")
	assert.Len(t, caches, 2)
	assert.Contains(t, caches, "ok_one")
	assert.Contains(t, caches, "ok_two")
}

func TestCache_CaseVariantLookup(t *testing.T) {
	cache := FromColumns(employeesTarget(), []datasource.ColumnInfo{
		{Name: "EMPLOYEE_ID", Type: "NUMBER"},
		{Name: "Last_Name", Type: "VARCHAR2"},
	}, StrategyLive)

	for _, name := range []string{"EMPLOYEE_ID", "employee_id", "Last_Name", "LAST_NAME", "last_name"} {
		_, ok := cache.IndexOf(name)
		assert.True(t, ok, name)
	}
	_, ok := cache.IndexOf("Employee_Id")
	assert.True(t, ok, "mixed case resolves through the upper-case variant")

	idx, ok := cache.AttributeIndex("id")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	typ, ok := cache.AttributeType("id")
	require.True(t, ok)
	assert.Equal(t, "NUMBER", typ)
	assert.Equal(t, convert.Decimal, cache.ValueType(1))
	assert.True(t, cache.IsMappedColumn(1))
	assert.Equal(t, "EMPLOYEE_ID", cache.ColumnLabel(1))
	assert.ElementsMatch(t, []string{"salary", "commissionPct"}, cache.Unmapped())
}

func TestDummyParams_UndeclaredDefaultsToString(t *testing.T) {
	params := DummyParams(Target{SQL: "SELECT * FROM t WHERE a = :a AND b = :b", Params: map[string]convert.Type{"b": convert.Long}})
	assert.Equal(t, map[string]any{"a": "DUMMY", "b": int64(0)}, params)
}
