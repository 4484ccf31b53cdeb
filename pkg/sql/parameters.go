package sql

import (
	gosql "database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnboundParameter is returned by SubstituteParameters when the SQL
// references a :name marker with no value in the supplied map.
var ErrUnboundParameter = errors.New("unbound parameter")

// BindStyle is the placeholder syntax a driver expects.
type BindStyle int

const (
	// BindNamed keeps :name markers and binds sql.Named values (go-ora).
	BindNamed BindStyle = iota
	// BindDollar rewrites to $1, $2 and reuses the ordinal for repeated names (pgx).
	BindDollar
	// BindAtP rewrites to @p1, @p2 and reuses the ordinal for repeated names (go-mssqldb).
	BindAtP
	// BindQuestion rewrites every marker to ? and repeats values (mysql, sqlite).
	BindQuestion
)

func (s BindStyle) String() string {
	switch s {
	case BindNamed:
		return "named"
	case BindDollar:
		return "dollar"
	case BindAtP:
		return "atp"
	case BindQuestion:
		return "question"
	}
	return fmt.Sprintf("BindStyle(%d)", int(s))
}

// bindMarker is one :name occurrence in SQL text, as byte offsets.
type bindMarker struct {
	start, end int
	name       string
}

// scanBindMarkers finds :name markers outside string literals, quoted
// identifiers and comments. PostgreSQL casts (::type) are not markers.
func scanBindMarkers(sqlText string) []bindMarker {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	var markers []bindMarker
	state := stateNormal
	n := len(sqlText)

	for i := 0; i < n; i++ {
		ch := sqlText[i]
		switch state {
		case stateNormal:
			switch {
			case ch == '\'':
				state = stateSingleQuote
			case ch == '"':
				state = stateDoubleQuote
			case ch == '-' && i+1 < n && sqlText[i+1] == '-':
				state = stateLineComment
				i++
			case ch == '/' && i+1 < n && sqlText[i+1] == '*':
				state = stateBlockComment
				i++
			case ch == ':':
				if i+1 < n && sqlText[i+1] == ':' {
					i++ // cast
					continue
				}
				if i+1 < n && isIdentStart(sqlText[i+1]) {
					j := i + 2
					for j < n && isIdentChar(sqlText[j]) {
						j++
					}
					markers = append(markers, bindMarker{start: i, end: j, name: sqlText[i+1 : j]})
					i = j - 1
				}
			}
		case stateSingleQuote:
			// '' re-enters immediately on the next quote, which keeps us in the string
			if ch == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if ch == '*' && i+1 < n && sqlText[i+1] == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return markers
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// ExtractParameters finds all :name bind markers in SQL and returns a
// deduplicated list of names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM employees WHERE department_id = :deptId AND salary > :minSalary"
//	params := ExtractParameters(sql)
//	// params == []string{"deptId", "minSalary"}
//
// Markers inside string literals, comments and PostgreSQL casts are ignored:
//
//	sql := "SELECT created_at::date, '10:30' FROM t WHERE id = :id -- :unused"
//	params := ExtractParameters(sql)
//	// params == []string{"id"}
func ExtractParameters(sqlText string) []string {
	seen := make(map[string]bool)
	var params []string

	for _, m := range scanBindMarkers(sqlText) {
		if !seen[m.name] {
			seen[m.name] = true
			params = append(params, m.name)
		}
	}

	return params
}

// UndefinedParameters returns the :name markers in sqlText that are not in
// defined, sorted. Defined names that the SQL never uses are not reported,
// since a parameter may be consumed only by a criteria fragment or a processor.
func UndefinedParameters(sqlText string, defined []string) []string {
	definedSet := make(map[string]bool, len(defined))
	for _, name := range defined {
		definedSet[name] = true
	}

	var undefined []string
	for _, name := range ExtractParameters(sqlText) {
		if !definedSet[name] {
			undefined = append(undefined, name)
		}
	}
	sort.Strings(undefined)
	return undefined
}

// SubstituteParameters rewrites :name markers into the driver's placeholder
// style and returns the args to pass to QueryContext in matching order.
//
// Every marker must have an entry in values (a nil entry binds NULL).
// Missing entries are collected and reported together.
//
// Example:
//
//	sql := "SELECT * FROM t WHERE a = :x OR b = :x AND c = :y"
//	out, args, _ := SubstituteParameters(sql, map[string]any{"x": 1, "y": 2}, BindDollar)
//	// out  == "SELECT * FROM t WHERE a = $1 OR b = $1 AND c = $2"
//	// args == []any{1, 2}
//
//	out, args, _ = SubstituteParameters(sql, map[string]any{"x": 1, "y": 2}, BindQuestion)
//	// out  == "SELECT * FROM t WHERE a = ? OR b = ? AND c = ?"
//	// args == []any{1, 1, 2}
func SubstituteParameters(sqlText string, values map[string]any, style BindStyle) (string, []any, error) {
	markers := scanBindMarkers(sqlText)
	if len(markers) == 0 {
		return sqlText, nil, nil
	}

	var missing []string
	missingSeen := make(map[string]bool)
	for _, m := range markers {
		if _, ok := values[m.name]; !ok && !missingSeen[m.name] {
			missingSeen[m.name] = true
			missing = append(missing, m.name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", nil, fmt.Errorf("%w: %s", ErrUnboundParameter, strings.Join(missing, ", "))
	}

	var (
		b         strings.Builder
		args      []any
		positions = make(map[string]int)
		last      int
	)
	b.Grow(len(sqlText))

	for _, m := range markers {
		b.WriteString(sqlText[last:m.start])
		last = m.end

		switch style {
		case BindQuestion:
			b.WriteByte('?')
			args = append(args, values[m.name])
		case BindNamed:
			b.WriteString(sqlText[m.start:m.end])
			if _, ok := positions[m.name]; !ok {
				positions[m.name] = len(args) + 1
				args = append(args, gosql.Named(m.name, values[m.name]))
			}
		default:
			pos, ok := positions[m.name]
			if !ok {
				args = append(args, values[m.name])
				pos = len(args)
				positions[m.name] = pos
			}
			if style == BindAtP {
				fmt.Fprintf(&b, "@p%d", pos)
			} else {
				fmt.Fprintf(&b, "$%d", pos)
			}
		}
	}
	b.WriteString(sqlText[last:])

	return b.String(), args, nil
}
