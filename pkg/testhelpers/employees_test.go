package testhelpers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEmployees_Shape(t *testing.T) {
	employees := Employees()
	if len(employees) != EmployeeCount {
		t.Fatalf("expected %d employees, got %d", EmployeeCount, len(employees))
	}

	threshold := decimal.NewFromInt(HighEarnerThreshold)
	high, atThreshold, nullCommission := 0, 0, 0
	for _, e := range employees {
		if e.Salary.GreaterThanOrEqual(threshold) {
			high++
		}
		if e.Salary.Equal(threshold) {
			atThreshold++
		}
		if e.CommissionPct == nil {
			nullCommission++
		}
	}

	if high != HighEarnerCount {
		t.Errorf("expected %d high earners, got %d", HighEarnerCount, high)
	}
	if atThreshold != 1 {
		t.Errorf("expected one employee at the threshold, got %d", atThreshold)
	}
	if nullCommission == 0 {
		t.Error("expected some employees without commission")
	}
}

func TestSQLiteEmployees(t *testing.T) {
	ds := SQLiteEmployees(t)

	var high int64
	err := ds.QueryScalar(context.Background(),
		"SELECT COUNT(*) FROM employees WHERE salary >= :min",
		map[string]any{"min": HighEarnerThreshold}, &high)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if high != HighEarnerCount {
		t.Errorf("expected %d high earners, got %d", HighEarnerCount, high)
	}
}
