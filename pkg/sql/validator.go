// Package sql holds the SQL text utilities of the query engine: bind marker
// scanning and driver-style substitution, criteria placeholder handling,
// statement validation and the libinjection value guard.
package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotSelect indicates the query text is not a SELECT (or WITH ... SELECT).
	ErrNotSelect = errors.New("query definitions must be SELECT statements")

	// ErrEmptyStatement indicates the query text is blank.
	ErrEmptyStatement = errors.New("query SQL is empty")
)

var leadingKeywordRegex = regexp.MustCompile(`^(?i)\s*\(*\s*(SELECT|WITH)\b`)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks a definition's base SQL and strips the
// trailing semicolon.
//
// The validation order is:
// 1. Reject blank SQL
// 2. Strip trailing semicolon and whitespace (normalize)
// 3. Check for multiple statements (any remaining semicolons outside literals and comments)
// 4. Require a SELECT or WITH statement, ignoring leading comments
func ValidateAndNormalize(sqlText string) ValidationResult {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return ValidationResult{Error: ErrEmptyStatement}
	}

	normalized := stripTrailingSemicolon(sqlText)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	if !leadingKeywordRegex.MatchString(stripLeadingComments(normalized)) {
		return ValidationResult{Error: ErrNotSelect}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals, quoted identifiers and line comments.
func hasSemicolonOutsideStrings(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlText {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '-':
				if prevChar == '-' {
					state = stateLineComment
				}
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters on the next quote.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")

	if strings.HasSuffix(sqlText, ";") {
		sqlText = strings.TrimSuffix(sqlText, ";")
		sqlText = strings.TrimRight(sqlText, " \t\n\r")
	}

	return sqlText
}

// stripLeadingComments drops "-- ..." lines and /* ... */ blocks before the
// first keyword.
func stripLeadingComments(sqlText string) string {
	for {
		sqlText = strings.TrimLeft(sqlText, " \t\n\r")
		switch {
		case strings.HasPrefix(sqlText, "--"):
			nl := strings.IndexByte(sqlText, '\n')
			if nl < 0 {
				return ""
			}
			sqlText = sqlText[nl+1:]
		case strings.HasPrefix(sqlText, "/*"):
			end := strings.Index(sqlText, "*/")
			if end < 0 {
				return ""
			}
			sqlText = sqlText[end+2:]
		default:
			return sqlText
		}
	}
}
