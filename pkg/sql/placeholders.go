package sql

import (
	"regexp"
	"strings"
)

// placeholderRegex matches --name criteria placeholders. A real comment
// ("-- note") has a space after the dashes and never matches.
var placeholderRegex = regexp.MustCompile(`--([A-Za-z_]\w*)\b`)

var (
	whereAndRegex    = regexp.MustCompile(`(?i)\bWHERE\s+(?:AND|OR)\b\s*`)
	whereClauseRegex = regexp.MustCompile(`(?i)\bWHERE\s+((?:ORDER|GROUP)\s+BY|HAVING|UNION|INTERSECT|EXCEPT|LIMIT|OFFSET|FETCH)\b`)
	whereParenRegex  = regexp.MustCompile(`(?i)\bWHERE\s*\)`)
	whereEndRegex    = regexp.MustCompile(`(?i)\s*\bWHERE\s*$`)
	doubleAndRegex   = regexp.MustCompile(`(?i)\b(AND|OR)\s+(?:AND|OR)\b`)
	danglingAndRegex = regexp.MustCompile(`(?i)\s+(?:AND|OR)(\s*(?:\)|$|(?:ORDER|GROUP)\s+BY\b|HAVING\b|UNION\b))`)
	trailingSpace    = regexp.MustCompile(`[ \t]+\n`)
	blankLines       = regexp.MustCompile(`\n{3,}`)
)

// FindPlaceholders returns the distinct criteria placeholder names in
// sqlText in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM employees WHERE 1=1 --deptFilter --statusFilter"
//	names := FindPlaceholders(sql)
//	// names == []string{"deptFilter", "statusFilter"}
func FindPlaceholders(sqlText string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderRegex.FindAllStringSubmatch(sqlText, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// HasPlaceholder reports whether --name appears in sqlText as a whole token.
func HasPlaceholder(sqlText, name string) bool {
	return placeholderPattern(name).MatchString(sqlText)
}

// ReplacePlaceholder substitutes every --name occurrence with fragment.
// An empty fragment removes the placeholder.
func ReplacePlaceholder(sqlText, name, fragment string) string {
	return placeholderPattern(name).ReplaceAllLiteralString(sqlText, fragment)
}

func placeholderPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta("--"+name) + `\b`)
}

// StripPlaceholders removes any --name placeholders left after criteria
// injection.
func StripPlaceholders(sqlText string) string {
	return placeholderRegex.ReplaceAllString(sqlText, "")
}

// CleanupSQL repairs the artifacts left when criteria contribute nothing:
// "WHERE AND x", "WHERE ORDER BY", "WHERE )", a trailing WHERE, doubled or
// dangling AND/OR, trailing whitespace and runs of blank lines.
//
// Example:
//
//	sql := "SELECT * FROM employees WHERE  AND salary > :min ORDER BY id"
//	// CleanupSQL(sql) == "SELECT * FROM employees WHERE salary > :min ORDER BY id"
func CleanupSQL(sqlText string) string {
	prev := ""
	for prev != sqlText {
		prev = sqlText
		sqlText = doubleAndRegex.ReplaceAllString(sqlText, "$1")
		sqlText = whereAndRegex.ReplaceAllString(sqlText, "WHERE ")
		sqlText = whereClauseRegex.ReplaceAllString(sqlText, "$1")
		sqlText = whereParenRegex.ReplaceAllString(sqlText, ")")
		sqlText = whereEndRegex.ReplaceAllString(sqlText, "")
		sqlText = danglingAndRegex.ReplaceAllString(sqlText, "$1")
	}

	sqlText = trailingSpace.ReplaceAllString(sqlText, "\n")
	sqlText = blankLines.ReplaceAllString(sqlText, "\n\n")
	return strings.TrimSpace(sqlText)
}
