package sql

import (
	"errors"
	"testing"
)

func TestValidateAndNormalize_ValidQueries(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple select without semicolon",
			input:    "SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "simple select with trailing semicolon",
			input:    "SELECT 1;",
			expected: "SELECT 1",
		},
		{
			name:     "select with trailing semicolon and whitespace",
			input:    "SELECT 1;  \n",
			expected: "SELECT 1",
		},
		{
			name:     "lowercase select",
			input:    "  select * from employees  ",
			expected: "select * from employees",
		},
		{
			name:     "common table expression",
			input:    "WITH d AS (SELECT * FROM departments) SELECT * FROM d",
			expected: "WITH d AS (SELECT * FROM departments) SELECT * FROM d",
		},
		{
			name:     "parenthesized select",
			input:    "(SELECT a FROM t) UNION (SELECT a FROM u)",
			expected: "(SELECT a FROM t) UNION (SELECT a FROM u)",
		},
		{
			name:     "leading comments",
			input:    "-- employees by department\n/* v2 */ SELECT * FROM employees",
			expected: "-- employees by department\n/* v2 */ SELECT * FROM employees",
		},
		{
			name:     "semicolon inside string literal",
			input:    "SELECT * FROM t WHERE note = 'a;b'",
			expected: "SELECT * FROM t WHERE note = 'a;b'",
		},
		{
			name:     "semicolon inside line comment",
			input:    "SELECT * FROM t -- first; second\nWHERE 1=1 --deptFilter",
			expected: "SELECT * FROM t -- first; second\nWHERE 1=1 --deptFilter",
		},
		{
			name:     "semicolon inside quoted identifier",
			input:    `SELECT "a;b" FROM t`,
			expected: `SELECT "a;b" FROM t`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			if result.Error != nil {
				t.Fatalf("unexpected error: %v", result.Error)
			}
			if result.NormalizedSQL != tt.expected {
				t.Errorf("NormalizedSQL = %q, want %q", result.NormalizedSQL, tt.expected)
			}
		})
	}
}

func TestValidateAndNormalize_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{"empty", "   ", ErrEmptyStatement},
		{"two selects", "SELECT 1; SELECT 2", ErrMultipleStatements},
		{"select then drop", "SELECT * FROM t; DROP TABLE t;", ErrMultipleStatements},
		{"delete", "DELETE FROM employees", ErrNotSelect},
		{"update", "UPDATE employees SET salary = 0", ErrNotSelect},
		{"comment only", "-- nothing", ErrNotSelect},
		{"selection is not select", "SELECTION FROM t", ErrNotSelect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			if !errors.Is(result.Error, tt.expected) {
				t.Errorf("error = %v, want %v", result.Error, tt.expected)
			}
			if result.NormalizedSQL != "" {
				t.Errorf("NormalizedSQL should be empty on error, got %q", result.NormalizedSQL)
			}
		})
	}
}

func TestHasSemicolonOutsideStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"SELECT 1", false},
		{"SELECT 1; SELECT 2", true},
		{"SELECT 'it''s; fine'", false},
		{"SELECT 'a' ; SELECT 'b'", true},
		{"SELECT 1 -- ;\n", false},
		{"SELECT 1 -- ;\n; SELECT 2", true},
		{"SELECT 5 - -1; SELECT 2", true},
	}

	for _, tt := range tests {
		if got := hasSemicolonOutsideStrings(tt.input); got != tt.expected {
			t.Errorf("hasSemicolonOutsideStrings(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestStripTrailingSemicolon(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":        "SELECT 1",
		"SELECT 1;":       "SELECT 1",
		"SELECT 1 ;\n\t ": "SELECT 1",
		"SELECT ';'":      "SELECT ';'",
	}
	for input, expected := range tests {
		if got := stripTrailingSemicolon(input); got != expected {
			t.Errorf("stripTrailingSemicolon(%q) = %q, want %q", input, got, expected)
		}
	}
}
