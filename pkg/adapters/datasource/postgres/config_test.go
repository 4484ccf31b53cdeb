package postgres

import (
	"strings"
	"testing"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

func TestFromConnectionConfig_Defaults(t *testing.T) {
	cfg, err := FromConnectionConfig(datasource.ConnectionConfig{
		Host:     "db.internal",
		User:     "reporter",
		Database: "hr",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Port)
	}
	if cfg.SSLMode != "require" {
		t.Errorf("expected default ssl mode 'require', got '%s'", cfg.SSLMode)
	}
}

func TestFromConnectionConfig_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		cc      datasource.ConnectionConfig
		wantErr string
	}{
		{"missing host", datasource.ConnectionConfig{User: "u", Database: "d"}, "host is required"},
		{"missing user", datasource.ConnectionConfig{Host: "h", Database: "d"}, "user is required"},
		{"missing database", datasource.ConnectionConfig{Host: "h", User: "u"}, "database is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConnectionConfig(tt.cc)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestBuildConnectionString_EscapesCredentials(t *testing.T) {
	cfg := &Config{
		Host:     "db.example.com",
		Port:     5433,
		User:     "report@user",
		Password: "p@ss/w#rd?",
		Database: "hr",
		SSLMode:  "disable",
	}

	got := buildConnectionString(cfg)

	if !strings.HasPrefix(got, "postgresql://report%40user:p%40ss%2Fw%23rd%3F@") {
		t.Errorf("credentials not escaped: %s", got)
	}
	if !strings.HasSuffix(got, ":5433/hr?sslmode=disable") {
		t.Errorf("unexpected suffix: %s", got)
	}
}

func TestRegistration(t *testing.T) {
	reg, ok := datasource.Lookup("postgres")
	if !ok {
		t.Fatal("postgres adapter not registered")
	}
	if reg.Info.DriverName != "pgx" {
		t.Errorf("expected driver 'pgx', got '%s'", reg.Info.DriverName)
	}
	if reg.Pagination != "standard" {
		t.Errorf("expected standard pagination, got '%s'", reg.Pagination)
	}
	if reg.Describer == nil {
		t.Error("expected a statement describer")
	}
}
