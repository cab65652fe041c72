// Package source implements the extraction layer: given a validated
// source configuration it connects to the engine, discovers its base
// tables, and materializes query results into models.ResultSet values.
//
// All four engines run through one database/sql implementation; the
// engine tag selects the driver, DSN shape, and introspection SQL
// through the dialect functions in this package.
package source

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/parquetry/parquetry/pkg/config"
	"github.com/parquetry/parquetry/pkg/logger"
	"github.com/parquetry/parquetry/pkg/models"
	"github.com/parquetry/parquetry/pkg/perrors"
)

// Source is the extraction capability the export driver depends on.
type Source interface {
	// DiscoverTables lists the base tables visible in the source.
	DiscoverTables(ctx context.Context) ([]string, error)
	// Query executes arbitrary SQL and materializes the full result.
	Query(ctx context.Context, query string) (*models.ResultSet, error)
	// Close releases the underlying connections.
	Close() error
}

type sqlSource struct {
	db     *sql.DB
	engine config.Engine
	log    *zap.Logger
}

// Open connects to the configured source and verifies the connection.
func Open(ctx context.Context, src *config.SourceConfig) (Source, error) {
	driver := driverName(src.Engine)
	if driver == "" {
		return nil, perrors.Newf(perrors.ErrorTypeConfig, "unknown engine %q", src.Engine)
	}

	db, err := sql.Open(driver, DSN(src))
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeConnection, "failed to open source")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, perrors.Wrap(err, perrors.ErrorTypeConnection, "failed to reach source")
	}

	return &sqlSource{
		db:     db,
		engine: src.Engine,
		log: logger.With(
			zap.String("source", src.Name),
			zap.String("engine", string(src.Engine))),
	}, nil
}

func (s *sqlSource) DiscoverTables(ctx context.Context) ([]string, error) {
	dq := discoverQuery(s.engine)

	rows, err := s.db.QueryContext(ctx, dq.query)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeQuery, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeQuery, "failed to read table list")
	}

	s.log.Debug("discovered tables", zap.Int("count", len(tables)))
	return tables, nil
}

func (s *sqlSource) Query(ctx context.Context, query string) (*models.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeQuery, "query failed").
			WithDetail("query", query)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to read column types")
	}

	schema := schemaFromColumns(colTypes)
	rs := models.NewResultSet(schema)

	for rows.Next() {
		scanned := make([]interface{}, len(colTypes))
		ptrs := make([]interface{}, len(colTypes))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to scan row")
		}

		row := make([]interface{}, len(colTypes))
		for i, v := range scanned {
			row[i] = normalizeValue(v, schema.Fields[i].Type)
		}
		rs.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeQuery, "failed to read rows")
	}

	return rs, nil
}

func (s *sqlSource) Close() error {
	return s.db.Close()
}

// schemaFromColumns maps driver column metadata to the logical schema.
func schemaFromColumns(cols []*sql.ColumnType) *models.Schema {
	schema := &models.Schema{Fields: make([]models.Field, len(cols))}
	for i, col := range cols {
		nullable, known := col.Nullable()
		schema.Fields[i] = models.Field{
			Name:     col.Name(),
			Type:     fieldTypeFor(col.DatabaseTypeName()),
			Nullable: nullable || !known,
		}
	}
	return schema
}

// fieldTypeFor maps an engine type name to a logical field type. Driver
// type names vary wildly across the four engines, so this matches the
// common families and defaults to string, which every engine value can
// round-trip through.
func fieldTypeFor(dbType string) models.FieldType {
	switch strings.ToUpper(dbType) {
	case "BOOL", "BOOLEAN", "BIT":
		return models.FieldTypeBool
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL",
		"UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		return models.FieldTypeInt
	case "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "REAL",
		"NUMERIC", "DECIMAL", "MONEY", "SMALLMONEY":
		return models.FieldTypeFloat
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
		"TIMESTAMP", "TIMESTAMPTZ":
		return models.FieldTypeTimestamp
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB",
		"BYTEA", "BINARY", "VARBINARY", "IMAGE":
		return models.FieldTypeBinary
	default:
		return models.FieldTypeString
	}
}

// normalizeValue converts driver-specific scan results into the small
// value vocabulary ResultSet promises: bool, int64, float64, string,
// []byte, time.Time, or nil.
func normalizeValue(v interface{}, ft models.FieldType) interface{} {
	if v == nil {
		return nil
	}

	switch ft {
	case models.FieldTypeBool:
		switch val := v.(type) {
		case bool:
			return val
		case int64:
			return val != 0
		case []byte:
			// MySQL BIT(1)
			return len(val) > 0 && val[0] != 0
		}
	case models.FieldTypeInt:
		switch val := v.(type) {
		case int64:
			return val
		case int32:
			return int64(val)
		case []byte:
			if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
				return n
			}
		}
	case models.FieldTypeFloat:
		switch val := v.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int64:
			return float64(val)
		case []byte:
			// NUMERIC and DECIMAL columns arrive as text from most drivers
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	case models.FieldTypeTimestamp:
		switch val := v.(type) {
		case time.Time:
			return val
		case string:
			return val // parsed downstream by the Parquet writer
		case []byte:
			return string(val)
		}
	case models.FieldTypeBinary:
		switch val := v.(type) {
		case []byte:
			return val
		case string:
			return []byte(val)
		}
	case models.FieldTypeString:
		switch val := v.(type) {
		case string:
			return val
		case []byte:
			return string(val)
		case time.Time:
			return val.Format(time.RFC3339Nano)
		}
	}

	return v
}
