// Package mysql registers the MySQL / MariaDB adapter.
package mysql

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+ and MariaDB",
			DriverName:  "mysql",
		},
		BindStyle:  enginesql.BindQuestion,
		Pagination: "standard",
		DSN:        connectionString,
	})
}

// tlsModes maps ssl modes onto the driver's tls parameter.
var tlsModes = map[string]string{
	"disable":     "false",
	"require":     "skip-verify",
	"verify-ca":   "true",
	"verify-full": "true",
	"preferred":   "preferred",
}

func connectionString(cc datasource.ConnectionConfig) (string, error) {
	if cc.Host == "" {
		return "", errors.New("host is required")
	}
	if cc.User == "" {
		return "", errors.New("user is required")
	}

	port := cc.Port
	if port == 0 {
		port = DefaultPort()
	}

	cfg := mysql.NewConfig()
	cfg.User = cc.User
	cfg.Passwd = cc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(datasource.ResolveHost(cc.Host), strconv.Itoa(port))
	cfg.DBName = cc.Database
	cfg.ParseTime = true

	if cc.SSLMode != "" {
		tls, ok := tlsModes[cc.SSLMode]
		if !ok {
			return "", fmt.Errorf("unsupported ssl mode %q", cc.SSLMode)
		}
		cfg.TLSConfig = tls
	}
	if len(cc.Options) > 0 {
		cfg.Params = make(map[string]string, len(cc.Options))
		for k, v := range cc.Options {
			cfg.Params[k] = v
		}
	}

	return cfg.FormatDSN(), nil
}
