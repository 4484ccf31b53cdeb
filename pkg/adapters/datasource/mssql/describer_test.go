package mssql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

func TestNormalizeTypeName(t *testing.T) {
	assert.Equal(t, "NVARCHAR", normalizeTypeName("nvarchar(50)"))
	assert.Equal(t, "DECIMAL", normalizeTypeName("decimal(10,2)"))
	assert.Equal(t, "INT", normalizeTypeName("int"))
	assert.Equal(t, "DATETIME2", normalizeTypeName(" datetime2(7) "))
}

func TestParamDeclarations(t *testing.T) {
	got := paramDeclarations([]any{"DUMMY", int64(0), decimal.Zero, false, time.Now()})
	assert.Equal(t, "@p1 nvarchar(max), @p2 bigint, @p3 decimal(38,10), @p4 bit, @p5 datetimeoffset", got)
}

func describeColumns() []string {
	return []string{"is_hidden", "column_ordinal", "name", "is_nullable", "system_type_id", "system_type_name"}
}

func TestDescribeStatement_WithoutParams(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(describeWithoutParams)).
		WillReturnRows(sqlmock.NewRows(describeColumns()).
			AddRow(false, 1, "EMPLOYEE_ID", false, 56, "int").
			AddRow(false, 2, "FULL_NAME", true, 231, "nvarchar(100)").
			AddRow(true, 3, "ROW_VERSION", false, 189, "timestamp").
			AddRow(false, 4, "SALARY", true, 106, "decimal(12,2)"))

	cols, err := describeStatement(context.Background(), db, "SELECT * FROM employees", nil)
	require.NoError(t, err)
	assert.Equal(t, []datasource.ColumnInfo{
		{Name: "EMPLOYEE_ID", Type: "INT"},
		{Name: "FULL_NAME", Type: "NVARCHAR"},
		{Name: "SALARY", Type: "DECIMAL"},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeStatement_WithParamsDeclaresTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(describeWithParams)).
		WillReturnRows(sqlmock.NewRows(describeColumns()).
			AddRow(false, 1, "DEPT", true, 231, "nvarchar(20)"))

	cols, err := describeStatement(context.Background(), db,
		"SELECT dept FROM employees WHERE (@p1 IS NULL OR dept = @p1)", []any{"DUMMY"})
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "NVARCHAR", cols[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeStatement_ServerError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(describeWithoutParams)).
		WillReturnError(assert.AnError)

	_, err = describeStatement(context.Background(), db, "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
