// Package convert is the type conversion matrix shared by parameter binding,
// filter values and row mapping. It maps database column types to attribute
// value types and coerces raw driver values into them.
package convert

import (
	"fmt"
	"strings"
)

// Type is the declared value type of an attribute or parameter.
type Type string

const (
	String   Type = "string"
	Integer  Type = "integer"  // int
	Long     Type = "long"     // int64
	Float    Type = "float"    // float32
	Double   Type = "double"   // float64
	Decimal  Type = "decimal"  // decimal.Decimal
	Boolean  Type = "boolean"  // bool
	Date     Type = "date"     // civil.Date
	DateTime Type = "datetime" // civil.DateTime
	Time     Type = "time"     // civil.Time
	Binary   Type = "binary"   // []byte
	Object   Type = "object"   // raw driver value, no coercion
)

var typeAliases = map[string]Type{
	"string":    String,
	"text":      String,
	"integer":   Integer,
	"int":       Integer,
	"long":      Long,
	"bigint":    Long,
	"float":     Float,
	"double":    Double,
	"decimal":   Decimal,
	"numeric":   Decimal,
	"boolean":   Boolean,
	"bool":      Boolean,
	"date":      Date,
	"datetime":  DateTime,
	"timestamp": DateTime,
	"time":      Time,
	"binary":    Binary,
	"bytes":     Binary,
	"object":    Object,
	"any":       Object,
}

// ParseType resolves a type name from a definition document. Empty means String.
func ParseType(s string) (Type, error) {
	if strings.TrimSpace(s) == "" {
		return String, nil
	}
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown value type %q", s)
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	switch t {
	case String, Integer, Long, Float, Double, Decimal, Boolean, Date, DateTime, Time, Binary, Object:
		return true
	}
	return false
}

// IsNumeric reports whether t holds a number.
func (t Type) IsNumeric() bool {
	switch t {
	case Integer, Long, Float, Double, Decimal:
		return true
	}
	return false
}

// IsTemporal reports whether t holds a date, datetime or time of day.
func (t Type) IsTemporal() bool {
	return t == Date || t == DateTime || t == Time
}

// ForDatabaseType maps a driver-reported column type name to the value type
// the row mapper extracts it as. Names are matched case-insensitively with any
// length/precision suffix removed, so "VARCHAR(255)" and "varchar" agree.
// Unknown types map to Object.
func ForDatabaseType(dbType string) Type {
	name := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	switch name {
	case "varchar", "char", "character", "character varying", "bpchar", "text", "name",
		"nvarchar", "nchar", "ntext", "varchar2", "nvarchar2", "clob", "nclob", "long",
		"string", "tinytext", "mediumtext", "longtext", "enum", "set", "uuid",
		"uniqueidentifier", "json", "jsonb", "xml", "citext", "rowid", "sysname":
		return String
	case "int2", "int4", "smallint", "integer", "int", "tinyint", "mediumint", "serial", "smallserial", "year":
		return Integer
	case "int8", "bigint", "bigserial", "unsigned bigint":
		return Long
	case "float4", "binary_float":
		return Float
	case "float8", "real", "double", "double precision", "float", "binary_double":
		return Double
	case "numeric", "decimal", "number", "money", "smallmoney", "dec":
		return Decimal
	case "bool", "boolean", "bit":
		return Boolean
	case "date":
		return Date
	case "timestamp", "timestamp without time zone", "datetime", "datetime2", "smalldatetime":
		return DateTime
	case "time", "time without time zone":
		return Time
	case "bytea", "blob", "binary", "varbinary", "image", "raw", "long raw",
		"tinyblob", "mediumblob", "longblob":
		return Binary
	}

	// "timestamptz", "timestamp with time zone", "datetimeoffset" keep their
	// zone and stay as time.Time.
	return Object
}
