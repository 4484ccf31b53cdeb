package postgres

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromConnectionConfig validates generic connection settings and fills defaults.
func FromConnectionConfig(cc datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:     cc.Host,
		Port:     cc.Port,
		User:     cc.User,
		Password: cc.Password,
		Database: cc.Database,
		SSLMode:  cc.SSLMode,
	}
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	if cfg.User == "" {
		return nil, errors.New("user is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("database is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}
	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL. User-provided fields are
// escaped so passwords containing @, /, # or ? survive URL parsing.
func buildConnectionString(cfg *Config) string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		datasource.ResolveHost(cfg.Host),
		cfg.Port,
		url.QueryEscape(cfg.Database),
		url.QueryEscape(cfg.SSLMode),
	)
}

func connectionString(cc datasource.ConnectionConfig) (string, error) {
	cfg, err := FromConnectionConfig(cc)
	if err != nil {
		return "", err
	}
	return buildConnectionString(cfg), nil
}
