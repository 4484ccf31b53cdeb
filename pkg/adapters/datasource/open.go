package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/retry"
)

// ConnectionConfig holds database-agnostic connection settings. Adapters
// translate it into a driver DSN; a non-empty DSN is used verbatim.
type ConnectionConfig struct {
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	DSN      string

	// Options carries adapter-specific settings such as "encrypt" for SQL Server.
	Options map[string]string
}

// PoolConfig tunes the database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings suitable for a single engine process.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Open connects to the configured database and verifies it with a ping,
// retrying transient failures.
func Open(ctx context.Context, cfg ConnectionConfig, pool PoolConfig, logger *zap.Logger) (*Datasource, error) {
	logger = logging.OrNop(logger)

	reg, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownType, cfg.Type, registeredTypes())
	}

	dsn := cfg.DSN
	if dsn == "" {
		if reg.DSN == nil {
			return nil, fmt.Errorf("datasource %s requires an explicit dsn", cfg.Type)
		}
		var err error
		if dsn, err = reg.DSN(cfg); err != nil {
			return nil, fmt.Errorf("build %s connection string: %w", cfg.Type, err)
		}
	}

	db, err := sql.Open(reg.Info.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %s", cfg.Type, logging.SanitizeError(err))
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s: %s", cfg.Type, logging.SanitizeError(err))
	}

	logger.Info("Connected to datasource",
		zap.String("type", cfg.Type),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
		zap.Int("max_open_conns", pool.MaxOpenConns))

	return New(db, reg, logger), nil
}
