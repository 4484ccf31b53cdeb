// Package sqlite registers the embedded SQLite adapter (modernc.org/sqlite,
// no cgo). The Database setting is the file path or ":memory:".
package sqlite

import (
	"errors"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Query an embedded SQLite database file",
			DriverName:  "sqlite",
		},
		BindStyle:  enginesql.BindQuestion,
		Pagination: "standard",
		DSN: func(cc datasource.ConnectionConfig) (string, error) {
			if cc.Database == "" {
				return "", errors.New("database path is required")
			}
			return cc.Database, nil
		},
	})
}
