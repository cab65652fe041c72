// Package config provides the declarative configuration model for
// Parquetry. A configuration file is a TOML document with one top-level
// table per data source:
//
//	[warehouse_pg]
//	database_type = "postgres"
//	host = "db.internal"
//	port = "5432"
//	username = "reporting"
//	password = "secret"
//	database = "app"
//
//	[warehouse_pg.override_limits]
//	event_log = -1
//
//	[[warehouse_pg.custom_queries]]
//	name = "active_users"
//	description = "Users seen in the last 30 days"
//	query = "SELECT * FROM users WHERE last_seen > now() - interval '30 days'"
//
// The configuration is parsed once at startup, validated, and never
// mutated during a run.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/parquetry/parquetry/pkg/perrors"
)

// Engine identifies which database engine a source speaks.
type Engine string

const (
	// EngineSQLServer is Microsoft SQL Server
	EngineSQLServer Engine = "sqlserver"
	// EnginePostgres is PostgreSQL
	EnginePostgres Engine = "postgres"
	// EngineMySQL is MySQL
	EngineMySQL Engine = "mysql"
	// EngineSQLite is SQLite; the database field holds a filesystem path
	// and the network fields are ignored
	EngineSQLite Engine = "sqlite"
)

// ParseEngine validates an engine tag from a configuration file
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineSQLServer, EnginePostgres, EngineMySQL, EngineSQLite:
		return Engine(s), nil
	default:
		return "", perrors.Newf(perrors.ErrorTypeConfig,
			"unknown database_type %q (expected sqlserver, postgres, mysql, or sqlite)", s)
	}
}

// CustomQuery is a named arbitrary query whose result is exported like a
// table. A custom query whose name collides with a table name overwrites
// that table's output.
type CustomQuery struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Query       string `toml:"query"`
}

// SourceConfig is one named connection definition. The name doubles as
// the output subdirectory and the analytical-database schema name.
type SourceConfig struct {
	Name           string           `toml:"-"`
	Engine         Engine           `toml:"database_type"`
	Host           string           `toml:"host"`
	Port           string           `toml:"port"`
	Username       string           `toml:"username"`
	Password       string           `toml:"password"`
	Database       string           `toml:"database"`
	OverrideLimits map[string]int64 `toml:"override_limits"`
	CustomQueries  []CustomQuery    `toml:"custom_queries"`
}

// Config holds every configured source in configuration-file order.
type Config struct {
	Sources []*SourceConfig
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.Newf(perrors.ErrorTypeConfig,
				"config file %s does not exist; create it and define at least one source", path)
		}
		return nil, perrors.Wrap(err, perrors.ErrorTypeConfig, "failed to read config file")
	}
	return Parse(string(data))
}

// Parse decodes and validates a TOML configuration document.
func Parse(data string) (*Config, error) {
	raw := map[string]*SourceConfig{}
	md, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeConfig, "malformed config file")
	}

	cfg := &Config{}
	for _, key := range md.Keys() {
		// Keys() reports every table and field in document order; the
		// length-one keys are exactly the source tables.
		if len(key) != 1 {
			continue
		}
		name := key[0]
		src, ok := raw[name]
		if !ok || src == nil {
			continue
		}
		src.Name = name
		cfg.Sources = append(cfg.Sources, src)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the system relies on:
// non-empty unique source names, known engine tags, and well-formed
// custom queries. Override limits for unknown tables are allowed and
// simply go unused.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return perrors.New(perrors.ErrorTypeConfig, "no sources defined in config")
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			return perrors.New(perrors.ErrorTypeConfig, "source name must not be empty")
		}
		if seen[src.Name] {
			return perrors.Newf(perrors.ErrorTypeConfig, "duplicate source name %q", src.Name)
		}
		seen[src.Name] = true

		if _, err := ParseEngine(string(src.Engine)); err != nil {
			return perrors.Wrap(err, perrors.ErrorTypeConfig,
				fmt.Sprintf("source %q", src.Name))
		}

		if src.Database == "" {
			return perrors.Newf(perrors.ErrorTypeConfig,
				"source %q: database must not be empty", src.Name)
		}

		for i, q := range src.CustomQueries {
			if q.Name == "" {
				return perrors.Newf(perrors.ErrorTypeConfig,
					"source %q: custom query %d has no name", src.Name, i)
			}
			if q.Query == "" {
				return perrors.Newf(perrors.ErrorTypeConfig,
					"source %q: custom query %q has no query text", src.Name, q.Name)
			}
		}
	}
	return nil
}

// Source returns the source with the given name, or nil.
func (c *Config) Source(name string) *SourceConfig {
	for _, src := range c.Sources {
		if src.Name == name {
			return src
		}
	}
	return nil
}

// OverrideTables returns the override table names in sorted order,
// for stable log output.
func (s *SourceConfig) OverrideTables() []string {
	tables := make([]string, 0, len(s.OverrideLimits))
	for t := range s.OverrideLimits {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
