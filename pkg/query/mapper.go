package query

import (
	gosql "database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
)

// mapper turns result rows into Rows for one execution. It is owned by the
// goroutine running the execution.
type mapper struct {
	def    *Definition
	qc     *Context
	cache  *metadata.Cache
	logger *zap.Logger

	included []*Attribute
}

func newMapper(def *Definition, qc *Context, cache *metadata.Cache, logger *zap.Logger) *mapper {
	m := &mapper{def: def, qc: qc, cache: cache, logger: logger}
	for i := range def.Attributes {
		if a := &def.Attributes[i]; qc.includes(a) {
			m.included = append(m.included, a)
		}
	}
	return m
}

// scan reads the current row of rows. Columns beyond the cached shape, such
// as a pagination row number, are read and ignored.
func (m *mapper) scan(rows *gosql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	dest := make([]any, width)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

// mapRow runs the mapping passes over one scanned row. Row-level failures
// are logged and recovered; mapRow never fails.
func (m *mapper) mapRow(values []any, index int) *Row {
	row := newRow(index, len(m.included))
	for _, a := range m.included {
		row.set(a.Name, nil)
	}

	normalized := m.extract(row, values)
	masked := make(map[string]bool)

	// Regular attributes.
	for _, a := range m.included {
		if a.Calculated {
			continue
		}
		if !m.allowed(a) {
			masked[a.Name] = true
			continue
		}
		row.set(a.Name, m.convert(a, m.lookup(a, normalized), index))
	}
	m.format(row, false, masked, index)

	// Calculated attributes, in declaration order.
	for _, a := range m.included {
		if !a.Calculated {
			continue
		}
		if !m.allowed(a) {
			masked[a.Name] = true
			continue
		}
		v, err := a.Calculator(row, m.qc)
		if err != nil {
			m.logger.Warn("Calculator failed; value set to null",
				zap.String("query", m.def.Name),
				zap.String("attribute", a.Name),
				zap.Int("row", index),
				zap.Error(err))
			continue
		}
		row.set(a.Name, m.convert(a, v, index))
	}
	m.format(row, true, masked, index)

	if m.def.DynamicAttributes {
		m.dynamic(row, normalized)
	}
	return row
}

// extract normalises every cached column and records it in the raw view.
// The returned slice is 1-based like the cache.
func (m *mapper) extract(row *Row, values []any) []any {
	n := m.cache.ColumnCount()
	normalized := make([]any, n+1)
	for i := 1; i <= n && i <= len(values); i++ {
		v := metadata.NormalizeValue(values[i-1], m.cache.ValueType(i))
		normalized[i] = v
		key := strings.ToLower(m.cache.ColumnName(i))
		if _, dup := row.raw[key]; !dup {
			row.raw[key] = v
		}
	}
	return normalized
}

func (m *mapper) allowed(a *Attribute) bool {
	return a.Security == nil || a.Security(a.Name, m.qc.Principal())
}

func (m *mapper) lookup(a *Attribute, normalized []any) any {
	if idx, ok := m.cache.AttributeIndex(a.Name); ok {
		return normalized[idx]
	}
	if idx, ok := m.cache.IndexOf(a.Column); ok {
		return normalized[idx]
	}
	return nil
}

// convert coerces v to the attribute type, keeping v when that fails.
func (m *mapper) convert(a *Attribute, v any, index int) any {
	if v == nil {
		return nil
	}
	out, err := convert.Convert(v, a.Type)
	if err != nil {
		m.logger.Warn("Value conversion failed; keeping original value",
			zap.String("query", m.def.Name),
			zap.String("attribute", a.Name),
			zap.Int("row", index),
			zap.String("type", string(a.Type)),
			zap.Error(err))
		return v
	}
	return out
}

func (m *mapper) format(row *Row, calculated bool, masked map[string]bool, index int) {
	for _, a := range m.included {
		if a.Calculated != calculated || a.Formatter == nil || masked[a.Name] {
			continue
		}
		v := row.values[a.Name]
		if v == nil {
			continue
		}
		s, err := a.Formatter(v)
		if err != nil {
			m.logger.Warn("Formatter failed; keeping unformatted value",
				zap.String("query", m.def.Name),
				zap.String("attribute", a.Name),
				zap.Int("row", index),
				zap.Error(err))
			continue
		}
		row.set(a.Name, s)
	}
}

// dynamic appends columns no attribute maps, under the definition's naming.
func (m *mapper) dynamic(row *Row, normalized []any) {
	for i := 1; i <= m.cache.ColumnCount(); i++ {
		if m.cache.IsMappedColumn(i) {
			continue
		}
		name := m.def.DynamicNaming.Apply(m.cache.ColumnName(i))
		if name == "" || row.Has(name) {
			continue
		}
		row.set(name, normalized[i])
	}
}

// liveCache builds a throwaway cache from an open result set, dropping the
// trailing columns pagination added so they never surface as dynamic
// attributes.
func liveCache(def *Definition, rows *gosql.Rows, extra int) (*metadata.Cache, error) {
	columns, err := datasource.ColumnsFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	if extra > 0 && len(columns) > extra {
		columns = columns[:len(columns)-extra]
	}
	return metadata.FromColumns(def.metadataTarget(), columns, metadata.StrategyLive), nil
}
