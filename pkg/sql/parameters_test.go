package sql

import (
	gosql "database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "SELECT * FROM employees",
			expected: nil,
		},
		{
			name:     "single parameter",
			sql:      "SELECT * FROM employees WHERE employee_id = :id",
			expected: []string{"id"},
		},
		{
			name:     "multiple parameters",
			sql:      "SELECT * FROM employees WHERE department_id = :deptId AND salary > :minSalary",
			expected: []string{"deptId", "minSalary"},
		},
		{
			name:     "duplicate parameter appears once",
			sql:      "SELECT * FROM transfers WHERE sender_id = :userId OR receiver_id = :userId",
			expected: []string{"userId"},
		},
		{
			name:     "parameter starting with underscore",
			sql:      "SELECT * FROM temp WHERE value = :_private",
			expected: []string{"_private"},
		},
		{
			name:     "parameter followed by punctuation",
			sql:      "SELECT * FROM t WHERE id IN (:a,:b)",
			expected: []string{"a", "b"},
		},
		{
			name:     "postgres cast is not a parameter",
			sql:      "SELECT hire_date::date FROM employees WHERE id = :id::int",
			expected: []string{"id"},
		},
		{
			name:     "marker inside string literal ignored",
			sql:      "SELECT '10:30', 'a :fake b' FROM dual WHERE x = :x",
			expected: []string{"x"},
		},
		{
			name:     "escaped quote keeps string open",
			sql:      "SELECT 'it''s :fake' FROM dual WHERE x = :x",
			expected: []string{"x"},
		},
		{
			name:     "marker inside quoted identifier ignored",
			sql:      `SELECT "odd:name" FROM t WHERE x = :x`,
			expected: []string{"x"},
		},
		{
			name:     "line comment ignored",
			sql:      "SELECT * FROM t WHERE x = :x -- :unused\nAND y = :y",
			expected: []string{"x", "y"},
		},
		{
			name:     "block comment ignored",
			sql:      "SELECT * FROM t /* :unused */ WHERE x = :x",
			expected: []string{"x"},
		},
		{
			name:     "digit after colon is not a marker",
			sql:      "SELECT * FROM t WHERE x = :1",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractParameters(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ExtractParameters() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestUndefinedParameters(t *testing.T) {
	sql := "SELECT * FROM employees WHERE department_id = :deptId AND salary > :minSalary AND x = :zeta"

	got := UndefinedParameters(sql, []string{"deptId"})
	want := []string{"minSalary", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UndefinedParameters() = %v, want %v", got, want)
	}

	if got := UndefinedParameters(sql, []string{"deptId", "minSalary", "zeta", "unusedButFine"}); got != nil {
		t.Errorf("UndefinedParameters() = %v, want nil", got)
	}
}

func TestSubstituteParameters(t *testing.T) {
	sql := "SELECT * FROM t WHERE a = :x OR b = :x AND c = :y"
	values := map[string]any{"x": 1, "y": "two"}

	tests := []struct {
		name         string
		style        BindStyle
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:         "dollar reuses ordinal",
			style:        BindDollar,
			expectedSQL:  "SELECT * FROM t WHERE a = $1 OR b = $1 AND c = $2",
			expectedArgs: []any{1, "two"},
		},
		{
			name:         "atp reuses ordinal",
			style:        BindAtP,
			expectedSQL:  "SELECT * FROM t WHERE a = @p1 OR b = @p1 AND c = @p2",
			expectedArgs: []any{1, "two"},
		},
		{
			name:         "question repeats values",
			style:        BindQuestion,
			expectedSQL:  "SELECT * FROM t WHERE a = ? OR b = ? AND c = ?",
			expectedArgs: []any{1, 1, "two"},
		},
		{
			name:         "named keeps markers",
			style:        BindNamed,
			expectedSQL:  sql,
			expectedArgs: []any{gosql.Named("x", 1), gosql.Named("y", "two")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := SubstituteParameters(sql, values, tt.style)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotSQL != tt.expectedSQL {
				t.Errorf("SQL = %q, want %q", gotSQL, tt.expectedSQL)
			}
			if !reflect.DeepEqual(gotArgs, tt.expectedArgs) {
				t.Errorf("args = %#v, want %#v", gotArgs, tt.expectedArgs)
			}
		})
	}
}

func TestSubstituteParameters_NilValueBindsNull(t *testing.T) {
	gotSQL, gotArgs, err := SubstituteParameters("SELECT :a", map[string]any{"a": nil}, BindDollar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSQL != "SELECT $1" {
		t.Errorf("SQL = %q", gotSQL)
	}
	if len(gotArgs) != 1 || gotArgs[0] != nil {
		t.Errorf("args = %#v, want [nil]", gotArgs)
	}
}

func TestSubstituteParameters_NoMarkers(t *testing.T) {
	gotSQL, gotArgs, err := SubstituteParameters("SELECT 1", nil, BindQuestion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSQL != "SELECT 1" || gotArgs != nil {
		t.Errorf("got %q %v", gotSQL, gotArgs)
	}
}

func TestSubstituteParameters_UnboundParameter(t *testing.T) {
	_, _, err := SubstituteParameters("SELECT * FROM t WHERE a = :b AND c = :a", map[string]any{}, BindDollar)
	if err == nil {
		t.Fatal("expected error for unbound parameters")
	}
	if !errors.Is(err, ErrUnboundParameter) {
		t.Errorf("expected ErrUnboundParameter, got %v", err)
	}
	if err.Error() != "unbound parameter: a, b" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestBindStyle_String(t *testing.T) {
	if BindAtP.String() != "atp" || BindQuestion.String() != "question" {
		t.Errorf("unexpected names %s %s", BindAtP, BindQuestion)
	}
	if BindStyle(42).String() != "BindStyle(42)" {
		t.Errorf("unexpected name %s", BindStyle(42))
	}
}
