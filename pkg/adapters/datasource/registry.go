package datasource

import (
	"sort"
	"sync"

	enginesql "github.com/ekaya-inc/ekaya-query-engine/pkg/sql"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "sqlserver", "oracle", "mysql", "sqlite"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`  // "Connect to PostgreSQL 12+"
	DriverName  string `json:"driver_name"`  // database/sql driver name passed to sql.Open
}

// Registration contains the info and hooks for one adapter type.
type Registration struct {
	Info AdapterInfo

	// BindStyle is the placeholder syntax the driver expects.
	BindStyle enginesql.BindStyle

	// Pagination names the pagination dialect used when configuration does
	// not choose one: "standard", "offset_fetch" or "row_number".
	Pagination string

	// DSN builds a driver connection string from connection settings.
	DSN func(cfg ConnectionConfig) (string, error)

	// Describer describes statements without executing them. Nil when the
	// driver has no such facility.
	Describer StatementDescriber
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Lookup returns the registration for a datasource type.
func Lookup(dsType string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := Lookup(dsType)
	return ok
}

func registeredTypes() []string {
	infos := RegisteredAdapters()
	types := make([]string, len(infos))
	for i, info := range infos {
		types[i] = info.Type
	}
	return types
}
