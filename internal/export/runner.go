// Package export implements the orchestration layer: given a validated
// configuration it plans the work list for each source, extracts every
// item, writes Parquet files, and optionally mirrors them into a DuckDB
// database. Sources and items run strictly one at a time.
package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/parquetry/parquetry/pkg/config"
	"github.com/parquetry/parquetry/pkg/formats/parquet"
	"github.com/parquetry/parquetry/pkg/logger"
	"github.com/parquetry/parquetry/pkg/source"
	"github.com/parquetry/parquetry/pkg/warehouse"
)

// OpenSourceFunc opens a connection to a configured source. It exists so
// tests can substitute an in-memory source.
type OpenSourceFunc func(ctx context.Context, src *config.SourceConfig) (source.Source, error)

// Runner executes an export run.
type Runner struct {
	// OutputDir is the root directory; each source writes into its own
	// sanitized subdirectory.
	OutputDir string
	// DuckDBPath enables the analytical-database output when non-empty.
	DuckDBPath string
	// DefaultLimit is the global row cap; nil means unlimited.
	DefaultLimit *int64
	// OpenSource defaults to source.Open.
	OpenSource OpenSourceFunc

	log *zap.Logger
}

// NewRunner creates a Runner with the real source opener.
func NewRunner(outputDir, duckdbPath string, defaultLimit *int64) *Runner {
	return &Runner{
		OutputDir:    outputDir,
		DuckDBPath:   duckdbPath,
		DefaultLimit: defaultLimit,
		OpenSource:   source.Open,
		log:          logger.With(zap.String("component", "export")),
	}
}

// Run processes every source in configuration order. Per-item failures
// are recorded and the run continues; only setup failures that make any
// output impossible (an unwritable output root, an unopenable DuckDB
// file) abort the run.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	if r.log == nil {
		r.log = logger.With(zap.String("component", "export"))
	}
	if r.OpenSource == nil {
		r.OpenSource = source.Open
	}

	report := &Report{StartedAt: time.Now()}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return nil, err
	}

	var wh *warehouse.DB
	if r.DuckDBPath != "" {
		var err error
		wh, err = warehouse.Open(r.DuckDBPath)
		if err != nil {
			return nil, err
		}
		defer wh.Close()
	}

	for _, src := range cfg.Sources {
		r.runSource(ctx, src, wh, report)
	}

	report.Duration = time.Since(report.StartedAt)
	r.log.Info("export finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Int64("rows", report.TotalRows()),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (r *Runner) runSource(ctx context.Context, src *config.SourceConfig, wh *warehouse.DB, report *Report) {
	log := r.log.With(zap.String("source", src.Name), zap.String("engine", string(src.Engine)))
	log.Info("processing source")

	s, err := r.OpenSource(ctx, src)
	if err != nil {
		log.Error("failed to open source", zap.Error(err))
		report.SourceErrors = append(report.SourceErrors, SourceError{Source: src.Name, Error: err.Error()})
		return
	}
	defer s.Close()

	items, err := Plan(ctx, src, s, r.DefaultLimit)
	if err != nil {
		log.Error("failed to plan source", zap.Error(err))
		report.SourceErrors = append(report.SourceErrors, SourceError{Source: src.Name, Error: err.Error()})
		return
	}

	dir := filepath.Join(r.OutputDir, warehouse.SanitizeIdent(src.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("failed to create output directory", zap.Error(err))
		report.SourceErrors = append(report.SourceErrors, SourceError{Source: src.Name, Error: err.Error()})
		return
	}

	if wh != nil {
		if err := wh.EnsureSchema(ctx, src.Name); err != nil {
			// Parquet output can still proceed without the schema.
			log.Error("failed to create DuckDB schema", zap.Error(err))
			report.SourceErrors = append(report.SourceErrors, SourceError{Source: src.Name, Error: err.Error()})
			wh = nil
		}
	}

	for _, item := range items {
		result := r.runItem(ctx, s, wh, dir, item)
		if result.Failed() {
			log.Error("work item failed",
				zap.String("output", item.OutputStem),
				zap.String("kind", string(item.Kind)),
				zap.String("error", result.Error))
		} else {
			log.Info("exported",
				zap.String("output", item.OutputStem),
				zap.String("kind", string(item.Kind)),
				zap.Int64("rows", result.Rows))
		}
		report.Items = append(report.Items, result)
	}
}

func (r *Runner) runItem(ctx context.Context, s source.Source, wh *warehouse.DB, dir string, item WorkItem) ItemResult {
	start := time.Now()
	result := ItemResult{
		Source: item.SourceName,
		Output: item.OutputStem,
		Kind:   item.Kind,
	}

	rs, err := s.Query(ctx, item.SQL)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	path := filepath.Join(dir, item.OutputStem+".parquet")
	if err := parquet.WriteFile(path, rs); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	if wh != nil {
		if err := wh.LoadParquet(ctx, item.SourceName, item.OutputStem, path); err != nil {
			result.Error = err.Error()
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Rows = rs.NumRows()
	result.Duration = time.Since(start)
	return result
}
