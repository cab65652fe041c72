package export

import (
	"context"
	"sort"

	"github.com/parquetry/parquetry/pkg/config"
	"github.com/parquetry/parquetry/pkg/source"
)

// Kind distinguishes the two flavors of work item.
type Kind string

const (
	// KindTable is a full-table export
	KindTable Kind = "table"
	// KindQuery is a custom query export
	KindQuery Kind = "query"
)

// WorkItem is one unit of extraction: either a table dump or a custom
// query, with the SQL to run and the stem of the output it produces
// (<stem>.parquet and the DuckDB table name).
type WorkItem struct {
	SourceName string
	OutputStem string
	SQL        string
	Limit      *int64
	Kind       Kind
}

// Plan enumerates the ordered work list for one source: one item per
// discovered table (lexicographic order, so runs are reproducible),
// followed by one item per custom query in configuration order.
//
// Custom queries run last on purpose: a query whose name collides with a
// table (or an earlier query) overwrites that output, both the Parquet
// file and the DuckDB table. No limit is injected into custom queries;
// they are expected to encode their own limiting in SQL.
func Plan(ctx context.Context, src *config.SourceConfig, s source.Source, globalDefault *int64) ([]WorkItem, error) {
	tables, err := s.DiscoverTables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)

	items := make([]WorkItem, 0, len(tables)+len(src.CustomQueries))
	for _, table := range tables {
		limit := ResolveLimit(src, table, globalDefault)
		items = append(items, WorkItem{
			SourceName: src.Name,
			OutputStem: table,
			SQL:        source.RowsQuery(src.Engine, table, limit),
			Limit:      limit,
			Kind:       KindTable,
		})
	}

	for _, q := range src.CustomQueries {
		items = append(items, WorkItem{
			SourceName: src.Name,
			OutputStem: q.Name,
			SQL:        q.Query,
			Kind:       KindQuery,
		})
	}

	return items, nil
}
