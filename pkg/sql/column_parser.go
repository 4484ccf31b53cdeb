package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn represents a column extracted from a SELECT list.
type ParsedColumn struct {
	Name string // output column name or alias, quotes removed, case preserved
	Expr string // the full expression (e.g., "SUM(amount)")
}

var (
	asAliasRegex   = regexp.MustCompile(`(?i)\s+AS\s+("[^"]+"|\[[^\]]+\]|` + "`[^`]+`" + `|\w+)\s*$`)
	funcNameRegex  = regexp.MustCompile(`^(\w+)\s*\(`)
	nonWordRegex   = regexp.MustCompile(`[^\w]`)
	selectKeywords = map[string]bool{
		"from": true, "where": true, "group": true, "order": true, "limit": true,
		"and": true, "or": true, "as": true, "end": true, "distinct": true,
	}
)

// ParseSelectColumns extracts the output column names of the outermost
// SELECT list. It is a best-effort scan used to cross-check attribute
// aliases before live metadata exists; the metadata builder remains the
// authority.
//
// It returns nil when the columns cannot be determined statically: the list
// contains a star (SELECT *, t.*), the statement starts with WITH, or there
// is no SELECT at all.
func ParseSelectColumns(sqlText string) []ParsedColumn {
	body := stripLeadingComments(strings.TrimSpace(sqlText))
	lower := strings.ToLower(body)
	if !strings.HasPrefix(lower, "select") {
		return nil
	}

	selectList := topLevelSelectList(body)
	if selectList == "" {
		return nil
	}
	selectList = strings.TrimSpace(selectList)
	if strings.HasPrefix(strings.ToLower(selectList), "distinct ") {
		selectList = strings.TrimSpace(selectList[len("distinct "):])
	}

	var result []ParsedColumn
	for _, col := range splitSelectColumns(selectList) {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if col == "*" || strings.HasSuffix(col, ".*") {
			return nil
		}
		result = append(result, parseColumnExpression(col))
	}
	return result
}

// topLevelSelectList returns the text between the leading SELECT and the
// first FROM at parenthesis depth zero.
func topLevelSelectList(body string) string {
	depth := 0
	inQuote := false
	start := len("select")
	for i := start; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && (ch == 'f' || ch == 'F'):
			if i > 0 && isIdentChar(body[i-1]) {
				continue
			}
			if i+4 <= len(body) && strings.EqualFold(body[i:i+4], "from") &&
				(i+4 == len(body) || !isIdentChar(body[i+4])) {
				return body[start:i]
			}
		}
	}
	return body[start:]
}

// splitSelectColumns splits a SELECT column list by commas, respecting
// parentheses and string literals.
func splitSelectColumns(selectClause string) []string {
	var columns []string
	var current strings.Builder
	parenDepth := 0
	inQuote := false

	for _, ch := range selectClause {
		switch {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			parenDepth++
		case ch == ')':
			parenDepth--
		case ch == ',' && parenDepth == 0:
			columns = append(columns, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}

	if current.Len() > 0 {
		columns = append(columns, current.String())
	}

	return columns
}

// parseColumnExpression derives the output name of one select-list entry.
// Examples:
//   - "first_name" → first_name
//   - "e.first_name" → first_name
//   - "e.first_name AS firstName" → firstName
//   - "COUNT(*)" → count
//   - "salary * 12 annual" → annual
func parseColumnExpression(expr string) ParsedColumn {
	expr = strings.TrimSpace(expr)

	if m := asAliasRegex.FindStringSubmatch(expr); m != nil {
		return ParsedColumn{Name: unquoteIdent(m[1]), Expr: expr}
	}

	// Implicit alias: balanced parens and a trailing bare word that is not a keyword.
	if strings.Count(expr, "(") == strings.Count(expr, ")") {
		parts := strings.Fields(expr)
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			prev := parts[len(parts)-2]
			if !strings.ContainsAny(last, "()'.") && !selectKeywords[strings.ToLower(last)] &&
				!strings.ContainsAny(prev[len(prev)-1:], "+-*/|=<>,") {
				return ParsedColumn{Name: unquoteIdent(last), Expr: expr}
			}
		}
	}

	return ParsedColumn{Name: extractColumnName(expr), Expr: expr}
}

// extractColumnName extracts a column name from an unaliased expression.
func extractColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	if m := funcNameRegex.FindStringSubmatch(expr); m != nil {
		return strings.ToLower(m[1])
	}

	if dotIdx := strings.LastIndex(expr, "."); dotIdx != -1 {
		expr = expr[dotIdx+1:]
	}

	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case_result"
	}

	return nonWordRegex.ReplaceAllString(unquoteIdent(expr), "")
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}
