package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parquetry/parquetry/pkg/perrors"
)

const sampleConfig = `
[orders_mssql]
database_type = "sqlserver"
host = "mssql.internal"
port = "1433"
username = "reader"
password = "secret"
database = "orders"

[orders_mssql.override_limits]
audit_log = 0
event_stream = -1
line_items = 5000

[[orders_mssql.custom_queries]]
name = "recent_orders"
description = "Orders from the current quarter"
query = "SELECT * FROM orders WHERE created_at > '2026-07-01'"

[app_sqlite]
database_type = "sqlite"
host = ""
port = ""
username = ""
password = ""
database = "/var/data/app.db"
`

func TestParse(t *testing.T) {
	cfg, err := Parse(sampleConfig)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)

	t.Run("configuration order is preserved", func(t *testing.T) {
		assert.Equal(t, "orders_mssql", cfg.Sources[0].Name)
		assert.Equal(t, "app_sqlite", cfg.Sources[1].Name)
	})

	t.Run("connection fields", func(t *testing.T) {
		src := cfg.Sources[0]
		assert.Equal(t, EngineSQLServer, src.Engine)
		assert.Equal(t, "mssql.internal", src.Host)
		assert.Equal(t, "1433", src.Port)
		assert.Equal(t, "reader", src.Username)
		assert.Equal(t, "orders", src.Database)
	})

	t.Run("override limits", func(t *testing.T) {
		src := cfg.Sources[0]
		assert.Equal(t, int64(0), src.OverrideLimits["audit_log"])
		assert.Equal(t, int64(-1), src.OverrideLimits["event_stream"])
		assert.Equal(t, int64(5000), src.OverrideLimits["line_items"])
		assert.Equal(t, []string{"audit_log", "event_stream", "line_items"}, src.OverrideTables())
	})

	t.Run("custom queries", func(t *testing.T) {
		src := cfg.Sources[0]
		require.Len(t, src.CustomQueries, 1)
		assert.Equal(t, "recent_orders", src.CustomQueries[0].Name)
		assert.Contains(t, src.CustomQueries[0].Query, "created_at")
	})

	t.Run("sqlite uses database as path", func(t *testing.T) {
		src := cfg.Source("app_sqlite")
		require.NotNil(t, src)
		assert.Equal(t, EngineSQLite, src.Engine)
		assert.Equal(t, "/var/data/app.db", src.Database)
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown engine",
			doc: `[src]
database_type = "oracle"
database = "x"`,
		},
		{
			name: "missing database",
			doc: `[src]
database_type = "postgres"`,
		},
		{
			name: "custom query without name",
			doc: `[src]
database_type = "sqlite"
database = "/tmp/x.db"

[[src.custom_queries]]
query = "SELECT 1"`,
		},
		{
			name: "custom query without query text",
			doc: `[src]
database_type = "sqlite"
database = "/tmp/x.db"

[[src.custom_queries]]
name = "empty"`,
		},
		{
			name: "empty document",
			doc:  ``,
		},
		{
			name: "not toml",
			doc:  `{"json": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			assert.True(t, perrors.IsType(err, perrors.ErrorTypeConfig), "expected config error, got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), path)
}

func TestParseEngine(t *testing.T) {
	for _, valid := range []string{"sqlserver", "postgres", "mysql", "sqlite"} {
		engine, err := ParseEngine(valid)
		require.NoError(t, err)
		assert.Equal(t, Engine(valid), engine)
	}

	_, err := ParseEngine("mariadb")
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeConfig))
}

func TestUnknownOverrideTablesAreAllowed(t *testing.T) {
	// An override that names a table the source does not have is simply
	// unused; validation must not reject it.
	cfg, err := Parse(`[src]
database_type = "sqlite"
database = "/tmp/x.db"

[src.override_limits]
no_such_table = 10`)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cfg.Sources[0].OverrideLimits["no_such_table"])
}
