//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_EmployeesSeeded(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	var total, high int64
	if err := testDB.Datasource.QueryScalar(ctx, "SELECT COUNT(*) FROM employees", nil, &total); err != nil {
		t.Fatalf("failed to count employees: %v", err)
	}
	if err := testDB.Datasource.QueryScalar(ctx,
		"SELECT COUNT(*) FROM employees WHERE salary >= :min",
		map[string]any{"min": HighEarnerThreshold}, &high); err != nil {
		t.Fatalf("failed to count high earners: %v", err)
	}

	if total != EmployeeCount {
		t.Errorf("expected %d employees, got %d", EmployeeCount, total)
	}
	if high != HighEarnerCount {
		t.Errorf("expected %d high earners, got %d", HighEarnerCount, high)
	}
}
