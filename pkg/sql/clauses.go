package sql

import (
	"regexp"
	"strings"
)

var orderByRegex = regexp.MustCompile(`(?i)^ORDER\s+BY\b`)

// HasTopLevelOrderBy reports whether sqlText ends in an ORDER BY clause that
// belongs to the outermost query, ignoring ORDER BY inside parentheses,
// string literals, quoted identifiers and comments.
func HasTopLevelOrderBy(sqlText string) bool {
	depth := 0
	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			i = skipQuoted(sqlText, i, ch)
		case ch == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && (ch == 'O' || ch == 'o'):
			if (i == 0 || !isIdentChar(sqlText[i-1])) && orderByRegex.MatchString(sqlText[i:]) {
				return true
			}
		}
	}
	return false
}

// skipQuoted returns the index of the quote closing the literal opened at
// start. Doubled quotes are escapes.
func skipQuoted(sqlText string, start int, quote byte) int {
	for i := start + 1; i < len(sqlText); i++ {
		if sqlText[i] == quote {
			if i+1 < len(sqlText) && sqlText[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(sqlText)
}
