// Package metadata discovers and caches the result-column shape of a query
// definition's compiled SQL, so row mapping can address columns by index and
// convert values without consulting driver metadata on every execution.
package metadata

import (
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
)

// Strategy records how a cache's column metadata was obtained.
type Strategy string

const (
	StrategyDescribe      Strategy = "describe"       // driver described the statement
	StrategyDescribeDummy Strategy = "describe_dummy" // described after binding dummy values
	StrategyEmptyResult   Strategy = "empty_result"   // executed wrapped in WHERE 1=0
	StrategyLive          Strategy = "live"           // taken from a live result set, not cached
)

// Cache is an immutable snapshot of a query's result columns. Column indexes
// are 1-based. A Cache is never modified after construction and is safe for
// concurrent reads.
type Cache struct {
	names     []string // names[0] unused
	labels    []string
	types     []string
	valueType []convert.Type
	mapped    []bool

	nameIndex map[string]int
	attrIndex map[string]int
	attrType  map[string]string

	unmapped    []string
	initialized bool
	createdAt   time.Time
	strategy    Strategy
}

// FromColumns builds a cache from discovered columns and resolves every
// non-calculated attribute of target to a column. Attributes whose column is
// missing are left unmapped and reported by Unmapped.
func FromColumns(target Target, columns []datasource.ColumnInfo, strategy Strategy) *Cache {
	n := len(columns)
	c := &Cache{
		names:     make([]string, n+1),
		labels:    make([]string, n+1),
		types:     make([]string, n+1),
		valueType: make([]convert.Type, n+1),
		mapped:    make([]bool, n+1),
		nameIndex: make(map[string]int, n*3),
		attrIndex: make(map[string]int, len(target.Attributes)),
		attrType:  make(map[string]string, len(target.Attributes)),
		createdAt: time.Now(),
		strategy:  strategy,
	}

	for i, col := range columns {
		idx := i + 1
		c.names[idx] = col.Name
		c.labels[idx] = col.Name
		c.types[idx] = col.Type
		c.valueType[idx] = convert.ForDatabaseType(col.Type)

		// First occurrence wins for duplicate column names.
		for _, variant := range caseVariants(col.Name) {
			if _, exists := c.nameIndex[variant]; !exists {
				c.nameIndex[variant] = idx
			}
		}
	}

	for _, attr := range target.Attributes {
		if attr.Calculated {
			continue
		}
		idx, ok := c.IndexOf(attr.Column)
		if !ok {
			c.unmapped = append(c.unmapped, attr.Name)
			continue
		}
		c.attrIndex[attr.Name] = idx
		c.mapped[idx] = true
		c.attrType[attr.Name] = c.types[idx]
	}

	c.initialized = true
	return c
}

func caseVariants(name string) []string {
	return []string{name, strings.ToUpper(name), strings.ToLower(name)}
}

// ColumnCount returns the number of result columns.
func (c *Cache) ColumnCount() int { return len(c.names) - 1 }

// ColumnName returns the name of the 1-based column i.
func (c *Cache) ColumnName(i int) string { return c.names[i] }

// ColumnLabel returns the label of the 1-based column i. database/sql does
// not distinguish labels from names, so both are the reported column name.
func (c *Cache) ColumnLabel(i int) string { return c.labels[i] }

// ColumnType returns the database type name of the 1-based column i.
func (c *Cache) ColumnType(i int) string { return c.types[i] }

// ValueType returns the conversion class of the 1-based column i.
func (c *Cache) ValueType(i int) convert.Type { return c.valueType[i] }

// IndexOf resolves a column name to its 1-based index. The name is matched
// as given, upper-cased and lower-cased.
func (c *Cache) IndexOf(name string) (int, bool) {
	for _, variant := range caseVariants(name) {
		if idx, ok := c.nameIndex[variant]; ok {
			return idx, true
		}
	}
	return 0, false
}

// AttributeIndex returns the column index an attribute is mapped to.
func (c *Cache) AttributeIndex(attr string) (int, bool) {
	idx, ok := c.attrIndex[attr]
	return idx, ok
}

// AttributeType returns the database type of the column an attribute is mapped to.
func (c *Cache) AttributeType(attr string) (string, bool) {
	t, ok := c.attrType[attr]
	return t, ok
}

// IsMappedColumn reports whether column i backs a declared attribute.
func (c *Cache) IsMappedColumn(i int) bool { return c.mapped[i] }

// Unmapped lists attributes whose column was not found in the result.
func (c *Cache) Unmapped() []string {
	out := make([]string, len(c.unmapped))
	copy(out, c.unmapped)
	return out
}

// Columns returns the discovered columns in result order.
func (c *Cache) Columns() []datasource.ColumnInfo {
	cols := make([]datasource.ColumnInfo, c.ColumnCount())
	for i := range cols {
		cols[i] = datasource.ColumnInfo{Name: c.names[i+1], Type: c.types[i+1]}
	}
	return cols
}

func (c *Cache) Initialized() bool    { return c != nil && c.initialized }
func (c *Cache) CreatedAt() time.Time { return c.createdAt }
func (c *Cache) Strategy() Strategy   { return c.strategy }
