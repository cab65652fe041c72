package source

import (
	"fmt"

	"github.com/parquetry/parquetry/pkg/config"
)

// tablesQuery pairs the introspection SQL for an engine with the column
// that carries the table names in its result.
type tablesQuery struct {
	query  string
	column string
}

// driverName maps an engine tag to its registered database/sql driver.
func driverName(engine config.Engine) string {
	switch engine {
	case config.EngineSQLServer:
		return "sqlserver"
	case config.EnginePostgres:
		return "pgx"
	case config.EngineMySQL:
		return "mysql"
	case config.EngineSQLite:
		return "sqlite"
	default:
		return ""
	}
}

// DSN builds the driver connection string for a source. SQLite uses the
// database field as a filesystem path and ignores the network fields.
func DSN(src *config.SourceConfig) string {
	switch src.Engine {
	case config.EngineSQLServer:
		return fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s&encrypt=disable&TrustServerCertificate=true",
			src.Username, src.Password, src.Host, src.Port, src.Database)
	case config.EnginePostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			src.Username, src.Password, src.Host, src.Port, src.Database)
	case config.EngineMySQL:
		// parseTime makes the driver scan DATETIME/TIMESTAMP columns
		// as time.Time instead of raw bytes.
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			src.Username, src.Password, src.Host, src.Port, src.Database)
	case config.EngineSQLite:
		return src.Database
	default:
		return ""
	}
}

// discoverQuery returns the SQL that lists the base tables visible in a
// source. Engine system tables are excluded.
func discoverQuery(engine config.Engine) tablesQuery {
	switch engine {
	case config.EngineSQLServer:
		return tablesQuery{
			query: `SELECT TABLE_NAME AS table_name
				FROM INFORMATION_SCHEMA.TABLES
				WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA != 'scratch'`,
			column: "table_name",
		}
	case config.EnginePostgres:
		return tablesQuery{
			query: `SELECT table_name
				FROM information_schema.tables
				WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`,
			column: "table_name",
		}
	case config.EngineMySQL:
		return tablesQuery{
			query: `SELECT TABLE_NAME AS table_name
				FROM INFORMATION_SCHEMA.TABLES
				WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'`,
			column: "table_name",
		}
	case config.EngineSQLite:
		return tablesQuery{
			query: `SELECT name AS table_name
				FROM sqlite_master
				WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
			column: "table_name",
		}
	default:
		return tablesQuery{}
	}
}

// RowsQuery builds the full-table export SQL for an engine. A nil limit
// means unlimited; a zero limit yields a schema-only, zero-row result.
// The limit clause does not change the source's default row ordering;
// callers needing a specific subset must use a custom query with an
// explicit ORDER BY.
func RowsQuery(engine config.Engine, table string, limit *int64) string {
	if limit == nil {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}
	if engine == config.EngineSQLServer {
		return fmt.Sprintf("SELECT TOP %d * FROM %s", *limit, table)
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, *limit)
}
