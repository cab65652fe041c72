// Package warehouse loads exported Parquet files into a DuckDB database
// file, one schema per source and one table per exported file. Loads are
// idempotent: tables are created with CREATE OR REPLACE, so re-running an
// export leaves the table set and row counts unchanged.
//
// DuckDB already reads Parquet natively, so the loader hands the file to
// the engine instead of re-encoding rows through a second insert path.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"

	"github.com/parquetry/parquetry/pkg/logger"
	"github.com/parquetry/parquetry/pkg/perrors"
)

// DB is an open DuckDB database file.
type DB struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the DuckDB database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeConnection, "failed to open DuckDB database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, perrors.Wrap(err, perrors.ErrorTypeConnection, "failed to open DuckDB database")
	}
	return &DB{
		db:  db,
		log: logger.With(zap.String("component", "warehouse"), zap.String("path", path)),
	}, nil
}

// Close closes the database file.
func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the schema if it does not exist. The name is
// sanitized first; "main" always exists and is left alone.
func (d *DB) EnsureSchema(ctx context.Context, name string) error {
	schema := SanitizeIdent(name)
	if schema == "main" {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to create schema").
			WithDetail("schema", schema)
	}
	return nil
}

// LoadParquet replaces the table <schema>.<table> with the contents of
// the given Parquet file.
func (d *DB) LoadParquet(ctx context.Context, schemaName, tableName, parquetPath string) error {
	schema := SanitizeIdent(schemaName)
	table := SanitizeIdent(tableName)

	query := fmt.Sprintf("CREATE OR REPLACE TABLE %s.%s AS SELECT * FROM read_parquet('%s')",
		schema, table, strings.ReplaceAll(parquetPath, "'", "''"))

	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to load Parquet file into DuckDB").
			WithDetail("schema", schema).
			WithDetail("table", table).
			WithDetail("file", parquetPath)
	}

	d.log.Debug("loaded table",
		zap.String("schema", schema),
		zap.String("table", table),
		zap.String("file", parquetPath))
	return nil
}

// SanitizeIdent makes a name safe as a DuckDB schema or table
// identifier: lowercase, alphanumerics and underscores only, prefixed
// with "s" when it does not start with a letter, and "schema" when the
// input is empty.
func SanitizeIdent(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" {
		return "schema"
	}
	if out[0] < 'a' || out[0] > 'z' {
		out = "s" + out
	}
	return out
}
