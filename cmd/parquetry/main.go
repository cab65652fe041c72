package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parquetry/parquetry/internal/export"
	"github.com/parquetry/parquetry/pkg/config"
	"github.com/parquetry/parquetry/pkg/formats/parquet"
	"github.com/parquetry/parquetry/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "parquetry",
		Short: "Parquetry - relational-to-Parquet export tool",
		Long: `Parquetry copies data from relational sources (SQL Server, PostgreSQL,
MySQL, SQLite) into Parquet files and, optionally, a DuckDB analytical
database, driven by a declarative TOML configuration file.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Parquetry v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newExportCmd())
	root.AddCommand(newSourcesCmd())
	root.AddCommand(newInspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newExportCmd() *cobra.Command {
	var (
		configFile string
		outputDir  string
		rowLimit   int64
		duckdbPath string
		reportPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every configured source to Parquet files",
		Long: `Export every table and custom query of every configured source to
<output-dir>/<source>/<name>.parquet. With --duckdb the results are also
loaded into a DuckDB database file, one schema per source.

The exit status is non-zero if any work item failed; failures are
isolated per item, so one bad table or query does not stop the rest of
the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(configFile, outputDir, rowLimit, duckdbPath, reportPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to TOML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./data/extracted/parquets", "Directory for Parquet output, one subdirectory per source")
	cmd.Flags().Int64Var(&rowLimit, "row-limit", -1, "Global per-table row cap when no override exists; negative = unlimited, 0 = schema only")
	cmd.Flags().StringVar(&duckdbPath, "duckdb", "", "Path to a DuckDB database file to load results into (optional)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON run report to this path (optional)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func runExport(configFile, outputDir string, rowLimit int64, duckdbPath, reportPath, logLevel string) error {
	if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	var defaultLimit *int64
	if rowLimit >= 0 {
		defaultLimit = &rowLimit
	}

	log := logger.With(zap.String("component", "parquetry-cli"))
	log.Info("starting export",
		zap.String("config", configFile),
		zap.String("output_dir", outputDir),
		zap.Int("sources", len(cfg.Sources)),
		zap.Bool("duckdb", duckdbPath != ""))

	runner := export.NewRunner(outputDir, duckdbPath, defaultLimit)
	report, err := runner.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	if reportPath != "" {
		if err := report.WriteJSON(reportPath); err != nil {
			log.Warn("failed to write report", zap.Error(err))
		}
	}

	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d work items failed", failed, len(report.Items)+len(report.SourceErrors))
	}

	fmt.Printf("Exported %d outputs (%d rows) to %s\n", report.Succeeded(), report.TotalRows(), outputDir)
	return nil
}

func newSourcesCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the sources defined in a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			for _, src := range cfg.Sources {
				fmt.Printf("%s (%s)\n", src.Name, src.Engine)
				if src.Engine == config.EngineSQLite {
					fmt.Printf("  database: %s\n", src.Database)
				} else {
					fmt.Printf("  database: %s@%s:%s/%s\n", src.Username, src.Host, src.Port, src.Database)
				}
				if len(src.OverrideLimits) > 0 {
					fmt.Printf("  override limits: %d (%v)\n", len(src.OverrideLimits), src.OverrideTables())
				}
				for _, q := range src.CustomQueries {
					if q.Description != "" {
						fmt.Printf("  custom query: %s - %s\n", q.Name, q.Description)
					} else {
						fmt.Printf("  custom query: %s\n", q.Name)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to TOML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.parquet>",
		Short: "Print the schema and row count of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := parquet.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d rows, %d columns\n", args[0], rs.NumRows(), rs.NumCols())
			for _, f := range rs.Schema.Fields {
				nullable := ""
				if f.Nullable {
					nullable = " (nullable)"
				}
				fmt.Printf("  %s: %s%s\n", f.Name, f.Type, nullable)
			}
			return nil
		},
	}
}
