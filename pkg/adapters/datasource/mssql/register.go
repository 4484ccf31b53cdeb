// Package mssql registers the SQL Server adapter backed by go-mssqldb.
package mssql

import (
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" database/sql driver

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
			DriverName:  "sqlserver",
		},
		BindStyle:  enginesql.BindAtP,
		Pagination: "offset_fetch",
		DSN:        connectionString,
		Describer:  datasource.DescriberFunc(describeStatement),
	})
}
