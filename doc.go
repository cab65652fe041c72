// Package parquetry is a batch export tool that copies data from
// relational sources into columnar outputs.
//
// Given a TOML configuration describing named data sources (SQL Server,
// PostgreSQL, MySQL, or SQLite), parquetry discovers each source's base
// tables, extracts every table and every configured custom query, and
// writes one Parquet file per result under an output directory, one
// subdirectory per source. With the --duckdb flag the same results are
// also loaded into a DuckDB database file, one schema per source, so the
// whole export is immediately queryable.
//
// # Behavior
//
// Within a source, table exports run first in lexicographic order,
// followed by custom queries in configuration order; a custom query
// whose name matches a table overwrites that table's output. Per-table
// row caps come from override_limits entries (negative = unlimited,
// 0 = schema only) and fall back to the --row-limit flag. Failures are
// isolated per work item: one bad table or query is recorded in the run
// report and the rest of the run continues, with a non-zero exit status
// at the end.
//
// Extraction is sequential and fully materialized: each result set is
// held in memory before it is written, so memory usage is bounded by the
// largest single table or query result.
//
// # Layout
//
//   - cmd/parquetry: the CLI
//   - pkg/config: TOML configuration model and validation
//   - pkg/source: engine dialects and extraction
//   - pkg/formats/parquet: Parquet writing and reading
//   - pkg/warehouse: DuckDB loading
//   - internal/export: planning and orchestration
package parquetry
