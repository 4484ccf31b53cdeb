// Package testhelpers provides database fixtures for ekaya-query-engine tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/sqlite" // registers "sqlite"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// Shape of the employees fixture.
const (
	EmployeeCount       = 37
	HighEarnerCount     = 22    // employees with salary >= HighEarnerThreshold
	HighEarnerThreshold = 50000 // the lowest high earner earns exactly this
)

// EmployeesDDL creates the fixture table. It is valid for PostgreSQL and SQLite.
const EmployeesDDL = `CREATE TABLE employees (
	id             INTEGER PRIMARY KEY,
	first_name     VARCHAR(50) NOT NULL,
	last_name      VARCHAR(50) NOT NULL,
	email          VARCHAR(100) NOT NULL,
	salary         DECIMAL(10,2) NOT NULL,
	commission_pct DECIMAL(4,2),
	hire_date      DATE NOT NULL,
	department_id  INTEGER NOT NULL
)`

const insertEmployee = `INSERT INTO employees
	(id, first_name, last_name, email, salary, commission_pct, hire_date, department_id)
	VALUES (:id, :first_name, :last_name, :email, :salary, :commission_pct, :hire_date, :department_id)`

// Employee is one fixture row.
type Employee struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	Salary        decimal.Decimal
	CommissionPct *decimal.Decimal // nil for every third employee
	HireDate      civil.Date
	DepartmentID  int64
}

var (
	firstNames = []string{
		"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Ken", "Dennis", "Margaret", "Linus",
		"Guido", "Rob", "Frances", "Niklaus", "John", "Radia", "Leslie", "Tony", "Jean", "Adele",
		"Bjarne", "James", "Hedy", "Whitfield", "Sophie", "Butler", "Karen", "Ivan", "Shafi", "Vint",
		"Robert", "Fran", "Andrew", "Mary", "Brian", "Yukihiro", "Anders",
	}
	lastNames = []string{
		"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Thompson", "Ritchie", "Hamilton", "Torvalds",
		"Van Rossum", "Pike", "Allen", "Wirth", "McCarthy", "Perlman", "Lamport", "Hoare", "Bartik", "Goldberg",
		"Stroustrup", "Gosling", "Lamarr", "Diffie", "Wilson", "Lampson", "Jones", "Sutherland", "Goldwasser", "Cerf",
		"Kahn", "Allen", "Tanenbaum", "Keller", "Kernighan", "Matsumoto", "Hejlsberg",
	}
)

// Employees returns the fixture rows. Employees whose index modulo 5 is 1,
// 2 or 4 are high earners; the first of them earns exactly the threshold.
func Employees() []Employee {
	out := make([]Employee, EmployeeCount)
	start := civil.Date{Year: 2015, Month: 1, Day: 5}
	for i := range out {
		salary := decimal.NewFromInt(int64(30000 + i*400))
		if m := i % 5; m == 1 || m == 2 || m == 4 {
			salary = decimal.NewFromInt(int64(HighEarnerThreshold + (i-1)*750))
		}

		var commission *decimal.Decimal
		if i%3 != 0 {
			c := decimal.New(int64(5+i%4*5), -2) // 0.05 .. 0.20
			commission = &c
		}

		out[i] = Employee{
			ID:            int64(i + 1),
			FirstName:     firstNames[i],
			LastName:      lastNames[i],
			Email:         strings.ToLower(fmt.Sprintf("%s.%s@example.com", firstNames[i], strings.ReplaceAll(lastNames[i], " ", ""))),
			Salary:        salary,
			CommissionPct: commission,
			HireDate:      start.AddDays(i * 37),
			DepartmentID:  int64(10 * (i%4 + 1)),
		}
	}
	return out
}

// SeedEmployees creates and fills the employees table through db, using the
// driver's bind style.
func SeedEmployees(ctx context.Context, db *sql.DB, style enginesql.BindStyle) error {
	if _, err := db.ExecContext(ctx, EmployeesDDL); err != nil {
		return fmt.Errorf("create employees: %w", err)
	}
	for _, e := range Employees() {
		var commission any
		if e.CommissionPct != nil {
			commission = e.CommissionPct.String()
		}
		stmt, args, err := enginesql.SubstituteParameters(insertEmployee, map[string]any{
			"id":             e.ID,
			"first_name":     e.FirstName,
			"last_name":      e.LastName,
			"email":          e.Email,
			"salary":         e.Salary.String(),
			"commission_pct": commission,
			"hire_date":      e.HireDate.String(),
			"department_id":  e.DepartmentID,
		}, style)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert employee %d: %w", e.ID, err)
		}
	}
	return nil
}

// SQLiteEmployees opens a file-backed SQLite datasource in a temp directory
// seeded with the employees fixture. It is closed when the test ends.
func SQLiteEmployees(t *testing.T) *datasource.Datasource {
	t.Helper()
	return SQLiteEmployeesAt(t, filepath.Join(t.TempDir(), "employees.db"))
}

// SQLiteEmployeesAt is SQLiteEmployees with a caller-chosen database file,
// for tests that hand the same file to another process or command.
func SQLiteEmployeesAt(t *testing.T, path string) *datasource.Datasource {
	t.Helper()
	ctx := context.Background()

	ds, err := datasource.Open(ctx, datasource.ConnectionConfig{
		Type:     "sqlite",
		Database: path,
	}, datasource.PoolConfig{MaxOpenConns: 4}, nil)
	if err != nil {
		t.Fatalf("failed to open sqlite datasource: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })

	if err := SeedEmployees(ctx, ds.DB(), ds.BindStyle()); err != nil {
		t.Fatalf("failed to seed employees: %v", err)
	}
	return ds
}
