// Package oracle registers the Oracle adapter backed by the pure-Go go-ora
// driver. Oracle cannot describe a statement without executing it through
// database/sql, so metadata is discovered with the empty-result fallback.
package oracle

import (
	"errors"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// DefaultPort returns the default Oracle listener port.
func DefaultPort() int {
	return 1521
}

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "oracle",
			DisplayName: "Oracle Database",
			Description: "Connect to Oracle Database 12c+ by service name",
			DriverName:  "oracle",
		},
		BindStyle:  enginesql.BindNamed,
		Pagination: "row_number",
		DSN:        connectionString,
	})
}

// connectionString builds an oracle:// URL. Database holds the service
// name; Options are passed through as URL options (e.g. "SSL": "true").
func connectionString(cc datasource.ConnectionConfig) (string, error) {
	if cc.Host == "" {
		return "", errors.New("host is required")
	}
	if cc.Database == "" {
		return "", errors.New("database (service name) is required")
	}
	if cc.User == "" {
		return "", errors.New("user is required")
	}

	port := cc.Port
	if port == 0 {
		port = DefaultPort()
	}

	options := make(map[string]string, len(cc.Options))
	for k, v := range cc.Options {
		options[k] = v
	}
	if cc.SSLMode != "" && cc.SSLMode != "disable" {
		options["SSL"] = "true"
		if cc.SSLMode == "require" {
			options["SSL VERIFY"] = "false"
		}
	}

	return go_ora.BuildUrl(datasource.ResolveHost(cc.Host), port, cc.Database, cc.User, cc.Password, options), nil
}
