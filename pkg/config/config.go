package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/crypto"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/query"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-query-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// CredentialsKey opens "enc:" sealed datasource secrets.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML

	// DefinitionsPath is the YAML document holding the query definitions to register.
	DefinitionsPath string `yaml:"definitions_path" env:"DEFINITIONS_PATH" env-default:"queries.yaml"`

	Datasource DatasourceConfig `yaml:"datasource"`
	Query      QueryConfig      `yaml:"query"`
	Metadata   MetadataConfig   `yaml:"metadata"`
}

// DatasourceConfig holds the connection to the database queries run against.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT"` // 0 uses the adapter default
	User     string `yaml:"user" env:"DATASOURCE_USER"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE"`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`

	// DSN is passed to the driver verbatim and overrides the fields above.
	DSN string `yaml:"-" env:"DATASOURCE_DSN"` // Secret - may embed credentials

	// Options carries adapter-specific settings, e.g. encrypt for SQL Server.
	Options map[string]string `yaml:"options" env:"DATASOURCE_OPTIONS"`

	MaxOpenConns       int `yaml:"max_open_conns" env:"DATASOURCE_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns       int `yaml:"max_idle_conns" env:"DATASOURCE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxIdleMinutes int `yaml:"conn_max_idle_minutes" env:"DATASOURCE_CONN_MAX_IDLE_MINUTES" env-default:"5"`
}

// QueryConfig tunes query execution.
type QueryConfig struct {
	// PaginationDialect is standard, offset_fetch or row_number. Empty uses
	// the datasource adapter's default.
	PaginationDialect      string        `yaml:"pagination_dialect" env:"QUERY_PAGINATION_DIALECT"`
	DefaultPageSize        int           `yaml:"default_page_size" env:"QUERY_DEFAULT_PAGE_SIZE" env-default:"50"`
	MaxPageSize            int           `yaml:"max_page_size" env:"QUERY_MAX_PAGE_SIZE" env-default:"1000"`
	StatementTimeout       time.Duration `yaml:"statement_timeout" env:"QUERY_STATEMENT_TIMEOUT" env-default:"30s"`
	AsyncWorkers           int           `yaml:"async_workers" env:"QUERY_ASYNC_WORKERS" env-default:"8"`
	RejectSuspiciousValues bool          `yaml:"reject_suspicious_values" env:"QUERY_REJECT_SUSPICIOUS_VALUES" env-default:"false"`
}

// MetadataConfig controls when result metadata caches are built.
type MetadataConfig struct {
	BuildOnRegister    bool `yaml:"build_on_register" env:"METADATA_BUILD_ON_REGISTER" env-default:"false"`
	TolerateMissing    bool `yaml:"tolerate_missing" env:"METADATA_TOLERATE_MISSING" env-default:"false"`
	PrewarmConcurrency int  `yaml:"prewarm_concurrency" env:"METADATA_PREWARM_CONCURRENCY" env-default:"4"`
}

var (
	datasourceTypes    = []string{"postgres", "sqlserver", "oracle", "mysql", "sqlite"}
	paginationDialects = []string{"", "standard", "offset_fetch", "row_number"}
)

// Load reads configuration from path with environment variable overrides.
// An empty path reads environment variables only. The version parameter is
// injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := crypto.OpenAll(cfg.CredentialsKey, &cfg.Datasource.Password, &cfg.Datasource.DSN); err != nil {
		return nil, fmt.Errorf("failed to open datasource secrets: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validate reports every invalid setting.
func (c *Config) validate() error {
	var errs []error

	if !slices.Contains(datasourceTypes, c.Datasource.Type) {
		errs = append(errs, fmt.Errorf("datasource.type %q must be one of %v", c.Datasource.Type, datasourceTypes))
	}
	if c.Datasource.Type == "sqlite" && c.Datasource.Database == "" && c.Datasource.DSN == "" {
		errs = append(errs, errors.New("datasource.database is required for sqlite"))
	}
	if !slices.Contains(paginationDialects, c.Query.PaginationDialect) {
		errs = append(errs, fmt.Errorf("query.pagination_dialect %q must be one of %v", c.Query.PaginationDialect, paginationDialects[1:]))
	}
	if c.Query.DefaultPageSize < 0 || c.Query.MaxPageSize < 0 {
		errs = append(errs, errors.New("query page sizes must not be negative"))
	}
	if c.Query.MaxPageSize > 0 && c.Query.DefaultPageSize > c.Query.MaxPageSize {
		errs = append(errs, fmt.Errorf("query.default_page_size %d exceeds query.max_page_size %d",
			c.Query.DefaultPageSize, c.Query.MaxPageSize))
	}
	if c.Query.StatementTimeout < 0 {
		errs = append(errs, errors.New("query.statement_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// Connection returns the datasource connection settings.
func (d *DatasourceConfig) Connection() datasource.ConnectionConfig {
	return datasource.ConnectionConfig{
		Type:     d.Type,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.Database,
		SSLMode:  d.SSLMode,
		DSN:      d.DSN,
		Options:  d.Options,
	}
}

// Pool returns the connection pool settings.
func (d *DatasourceConfig) Pool() datasource.PoolConfig {
	return datasource.PoolConfig{
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxIdleTime: time.Duration(d.ConnMaxIdleMinutes) * time.Minute,
	}
}

// Engine returns the query engine configuration.
func (c *Config) Engine() query.Config {
	return query.Config{
		Dialect:                 c.Query.PaginationDialect,
		DefaultPageSize:         c.Query.DefaultPageSize,
		MaxPageSize:             c.Query.MaxPageSize,
		StatementTimeout:        c.Query.StatementTimeout,
		AsyncWorkers:            c.Query.AsyncWorkers,
		RejectSuspiciousValues:  c.Query.RejectSuspiciousValues,
		BuildMetadataOnRegister: c.Metadata.BuildOnRegister,
		TolerateMissingMetadata: c.Metadata.TolerateMissing,
		PrewarmConcurrency:      c.Metadata.PrewarmConcurrency,
	}
}
