package mssql

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Connection options, read from ConnectionConfig.Options.
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromConnectionConfig validates generic connection settings. Recognised
// options are "encrypt" ("true", "false", "strict"),
// "trust_server_certificate" and "connection_timeout" (seconds).
func FromConnectionConfig(cc datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:              cc.Host,
		Port:              cc.Port,
		Database:          cc.Database,
		Username:          cc.User,
		Password:          cc.Password,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}

	if v, ok := cc.Options["encrypt"]; ok {
		cfg.Encrypt = strings.EqualFold(v, "true") || strings.EqualFold(v, "strict")
	}
	if v, ok := cc.Options["trust_server_certificate"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trust_server_certificate %q: %w", v, err)
		}
		cfg.TrustServerCertificate = b
	}
	if v, ok := cc.Options["connection_timeout"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid connection_timeout %q: %w", v, err)
		}
		cfg.ConnectionTimeout = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is complete for SQL authentication.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Username == "" {
		return errors.New("username is required for SQL authentication")
	}
	if c.Password == "" {
		return errors.New("password is required for SQL authentication")
	}
	return nil
}

// buildConnectionString builds a sqlserver:// URL for SQL authentication.
func buildConnectionString(cfg *Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}

	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		datasource.ResolveHost(cfg.Host),
		cfg.Port,
		query.Encode(),
	)
}

func connectionString(cc datasource.ConnectionConfig) (string, error) {
	cfg, err := FromConnectionConfig(cc)
	if err != nil {
		return "", err
	}
	return buildConnectionString(cfg), nil
}
