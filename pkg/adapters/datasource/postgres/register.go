// Package postgres registers the PostgreSQL adapter. It uses the pgx
// database/sql driver and describes statements through the extended query
// protocol, so result metadata is available without running the query.
package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			DriverName:  "pgx",
		},
		BindStyle:  enginesql.BindDollar,
		Pagination: "standard",
		DSN:        connectionString,
		Describer:  datasource.DescriberFunc(describeStatement),
	})
}
