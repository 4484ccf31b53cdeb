package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of generated SQL written to logs
	MaxQueryLogLength = 512
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches user:pass@host in DSNs (postgres://, sqlserver://, oracle://)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// Matches the user:pass@ prefix of mysql-style DSNs (user:pass@tcp(host)/db)
	mysqlCredentialPattern = regexp.MustCompile(`^[^:/\s@]+:[^@\s]*@`)

	// Matches single-quoted SQL string literals, including doubled quotes
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeConnectionString removes credentials from a DSN before logging.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	if strings.Contains(sanitized, "://") {
		return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	}
	return mysqlCredentialPattern.ReplaceAllString(sanitized, RedactedText+"@")
}

// SanitizeError sanitizes driver error messages that may echo a DSN.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeQuery prepares generated SQL for logging: whitespace is collapsed,
// string literals are redacted and the result is truncated.
// Bind parameter values never appear in the text, only their markers.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := stringLiteralPattern.ReplaceAllString(query, "'"+RedactedText+"'")
	sanitized = strings.TrimSpace(whitespacePattern.ReplaceAllString(sanitized, " "))

	return TruncateString(sanitized, MaxQueryLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
