//go:build integration

package query

import (
	"testing"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/testhelpers"
)

func newPostgresEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	db := testhelpers.GetTestDB(t)
	e, err := New(db.Datasource, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	require.NoError(t, e.Register(t.Context(), employeesDefinition()))
	return e
}

func TestPostgres_DescribesOnRegister(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildMetadataOnRegister = true
	e := newPostgresEngine(t, cfg)

	def, err := e.Registry().Get("employees")
	require.NoError(t, err)
	cache := def.Cache()
	require.NotNil(t, cache)
	assert.Equal(t, metadata.StrategyDescribe, cache.Strategy())
	assert.Equal(t, 8, cache.ColumnCount())
}

func TestPostgres_FilterSortAndPage(t *testing.T) {
	e := newPostgresEngine(t, DefaultConfig())

	res := mustQuery(t, e, "employees").
		Filter("salary", OpGreaterThanOrEqual, testhelpers.HighEarnerThreshold).
		OrderBy("salary", Desc).
		Page(0, 10).
		Execute(t.Context())
	require.NoError(t, res.Err())
	require.Len(t, res.Rows, 10)

	var prev *decimal.Decimal
	for _, row := range res.Rows {
		salary, ok := row.Decimal("salary")
		require.True(t, ok)
		if prev != nil {
			assert.True(t, salary.LessThanOrEqual(*prev), "salary %s after %s", salary, prev)
		}
		prev = &salary
	}

	require.NotNil(t, res.Metadata.TotalCount)
	assert.Equal(t, int64(testhelpers.HighEarnerCount), *res.Metadata.TotalCount)
}

func TestPostgres_TypedValues(t *testing.T) {
	e := newPostgresEngine(t, DefaultConfig())
	want := testhelpers.Employees()[1]

	row, err := mustQuery(t, e, "employees").Param("employeeId", want.ID).ExecuteSingle(t.Context())
	require.NoError(t, err)

	salary, ok := row.Decimal("salary")
	require.True(t, ok)
	assert.True(t, want.Salary.Equal(salary))

	hired, ok := row.Date("hireDate")
	require.True(t, ok)
	assert.Equal(t, want.HireDate, hired)
	assert.IsType(t, civil.Date{}, row.Map()["hireDate"])
}

func TestPostgres_OffsetFetchDialect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = "offset_fetch"
	e := newPostgresEngine(t, cfg)

	res := mustQuery(t, e, "employees").OrderBy("id", Asc).Page(5, 10).Execute(t.Context())
	require.NoError(t, res.Err())
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, rowIDs(t, res.Rows))
}
