package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
)

func TestConnectionString(t *testing.T) {
	dsn, err := connectionString(datasource.ConnectionConfig{
		Host:     "ora.example.com",
		User:     "hr",
		Password: "secret",
		Database: "ORCLPDB1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "oracle://"), dsn)
	assert.Contains(t, dsn, "ora.example.com:1521")
	assert.Contains(t, dsn, "ORCLPDB1")
}

func TestConnectionString_RequiresServiceName(t *testing.T) {
	_, err := connectionString(datasource.ConnectionConfig{Host: "ora", User: "hr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service name")
}

func TestRegistration(t *testing.T) {
	reg, ok := datasource.Lookup("oracle")
	require.True(t, ok)
	assert.Equal(t, "row_number", reg.Pagination)
	assert.Equal(t, "named", reg.BindStyle.String())
	assert.Nil(t, reg.Describer)
}
