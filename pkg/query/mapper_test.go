package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
)

// upperColumns mimics a driver that reports column names in upper case.
var upperColumns = []datasource.ColumnInfo{
	{Name: "ID", Type: "INTEGER"},
	{Name: "NAME", Type: "VARCHAR2"},
	{Name: "SALARY", Type: "NUMBER"},
	{Name: "COMMISSION_PCT", Type: "NUMBER"},
	{Name: "EXTRA_COL", Type: "VARCHAR2"},
}

func staffDefinition() *Definition {
	return &Definition{
		Name: "staff",
		SQL:  "SELECT id, name, salary, commission_pct, extra_col FROM staff",
		Attributes: []Attribute{
			{Name: "id", Type: convert.Long},
			{Name: "name", Formatter: func(v any) (string, error) { return strings.ToUpper(v.(string)), nil }},
			{Name: "salary", Type: convert.Decimal},
			{Name: "commissionPct", Column: "commission_pct", Type: convert.Decimal},
			{Name: "totalCompensation", Type: convert.Decimal, Calculated: true, Calculator: totalCompensation},
		},
	}
}

func newTestMapper(t *testing.T, def *Definition, qc *Context) *mapper {
	t.Helper()
	cache := metadata.FromColumns(def.metadataTarget(), upperColumns, metadata.StrategyDescribe)
	return newMapper(def, qc, cache, zaptest.NewLogger(t))
}

func staffValues(pct any) []any {
	return []any{int64(7), "ada", "1000.00", pct, "spare"}
}

func TestMapRow_ResolvesColumnsCaseInsensitively(t *testing.T) {
	def := compiled(t, staffDefinition())
	m := newTestMapper(t, def, newContext(def, nil))

	row := m.mapRow(staffValues("0.10"), 3)

	assert.Equal(t, 3, row.Index())
	assert.Equal(t, []string{"id", "name", "salary", "commissionPct", "totalCompensation"}, row.Keys())

	id, ok := row.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	salary, ok := row.Decimal("salary")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1000).Equal(salary))

	raw, ok := row.Raw("extra_col")
	require.True(t, ok)
	assert.Equal(t, "spare", raw)
	assert.False(t, row.Has("extra_col"), "unmapped columns stay out without dynamic attributes")
}

func TestMapRow_FormatterRunsBeforeCalculators(t *testing.T) {
	def := staffDefinition()
	def.Attributes = append(def.Attributes, Attribute{
		Name:       "greeting",
		Calculated: true,
		Calculator: func(row *Row, _ *Context) (any, error) {
			name, _ := row.String("name")
			return "hello " + name, nil
		},
	})
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)

	name, _ := row.Get("name")
	assert.Equal(t, "ADA", name)
	greeting, _ := row.Get("greeting")
	assert.Equal(t, "hello ADA", greeting)
}

func TestMapRow_CalculatorsSeeEarlierCalculatedAttributes(t *testing.T) {
	def := staffDefinition()
	def.Attributes = append(def.Attributes, Attribute{
		Name:       "doubled",
		Type:       convert.Decimal,
		Calculated: true,
		Calculator: func(row *Row, _ *Context) (any, error) {
			total, ok := row.Decimal("totalCompensation")
			if !ok {
				return nil, errors.New("total not computed")
			}
			return total.Mul(decimal.NewFromInt(2)), nil
		},
	})
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues("0.10"), 0)

	doubled, ok := row.Decimal("doubled")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(2200).Equal(doubled), "got %s", doubled)
}

func TestMapRow_NullCommissionLeavesSalaryUnchanged(t *testing.T) {
	def := compiled(t, staffDefinition())
	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)

	assert.True(t, row.IsNull("commissionPct"))
	total, ok := row.Decimal("totalCompensation")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1000).Equal(total), "got %s", total)
}

func TestMapRow_CalculatorErrorYieldsNull(t *testing.T) {
	def := staffDefinition()
	def.Attributes[4].Calculator = func(*Row, *Context) (any, error) { return nil, errors.New("boom") }
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues("0.10"), 0)

	assert.True(t, row.Has("totalCompensation"))
	assert.True(t, row.IsNull("totalCompensation"))
}

func TestMapRow_SecurityMasksAttributes(t *testing.T) {
	called := false
	onlyAdmin := func(_ string, principal any) bool { return principal == "admin" }

	def := staffDefinition()
	def.Attributes[2].Security = onlyAdmin
	def.Attributes[4].Security = onlyAdmin
	def.Attributes[4].Calculator = func(*Row, *Context) (any, error) {
		called = true
		return decimal.NewFromInt(1), nil
	}
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil).As("guest")).mapRow(staffValues("0.10"), 0)

	assert.True(t, row.Has("salary"))
	assert.True(t, row.IsNull("salary"))
	assert.True(t, row.IsNull("totalCompensation"))
	assert.False(t, called, "masked calculators are not evaluated")

	row = newTestMapper(t, def, newContext(def, nil).As("admin")).mapRow(staffValues("0.10"), 0)
	assert.False(t, row.IsNull("salary"))
	assert.True(t, called)
}

func TestMapRow_ConversionFailureKeepsValue(t *testing.T) {
	def := staffDefinition()
	def.Attributes[1].Type = convert.Long
	def.Attributes[1].Formatter = nil
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)

	name, _ := row.Get("name")
	assert.Equal(t, "ada", name)
}

func TestMapRow_HiddenAttributesNeedSelection(t *testing.T) {
	def := staffDefinition()
	def.Attributes[1].Hidden = true
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)
	assert.False(t, row.Has("name"))

	row = newTestMapper(t, def, newContext(def, nil).Select("name")).mapRow(staffValues(nil), 0)
	assert.True(t, row.Has("name"))
}

func TestMapRow_DynamicAttributes(t *testing.T) {
	def := staffDefinition()
	def.DynamicAttributes = true
	def.DynamicNaming = NamingCamel
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)

	extra, ok := row.Get("extraCol")
	require.True(t, ok)
	assert.Equal(t, "spare", extra)
	assert.Equal(t, "extraCol", row.Keys()[len(row.Keys())-1])
}

func TestMapRow_MissingColumnMapsToNull(t *testing.T) {
	def := staffDefinition()
	def.Attributes = append(def.Attributes[:4:4], Attribute{Name: "region"})
	compiled(t, def)

	row := newTestMapper(t, def, newContext(def, nil)).mapRow(staffValues(nil), 0)

	assert.True(t, row.Has("region"))
	assert.True(t, row.IsNull("region"))
}
