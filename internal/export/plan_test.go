package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parquetry/parquetry/pkg/config"
	"github.com/parquetry/parquetry/pkg/models"
	"github.com/parquetry/parquetry/pkg/perrors"
)

// fakeSource satisfies source.Source without a database. Results and
// errors are keyed by the exact SQL the planner builds.
type fakeSource struct {
	tables      []string
	discoverErr error
	results     map[string]*models.ResultSet
	errors      map[string]error
	queries     []string
	closed      bool
}

func (f *fakeSource) DiscoverTables(ctx context.Context) ([]string, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.tables, nil
}

func (f *fakeSource) Query(ctx context.Context, query string) (*models.ResultSet, error) {
	f.queries = append(f.queries, query)
	if err, ok := f.errors[query]; ok {
		return nil, err
	}
	if rs, ok := f.results[query]; ok {
		return rs, nil
	}
	return emptyResult(), nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func emptyResult() *models.ResultSet {
	return models.NewResultSet(&models.Schema{Fields: []models.Field{
		{Name: "id", Type: models.FieldTypeInt, Nullable: true},
	}})
}

func resultWithRows(n int) *models.ResultSet {
	rs := emptyResult()
	for i := 0; i < n; i++ {
		rs.Append([]interface{}{int64(i)})
	}
	return rs
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	src := &config.SourceConfig{
		Name:   "db",
		Engine: config.EngineSQLite,
		OverrideLimits: map[string]int64{
			"tags": -1,
			"logs": 0,
		},
		CustomQueries: []config.CustomQuery{
			{Name: "summary", Query: "SELECT count(*) AS n FROM notes"},
			{Name: "notes", Query: "SELECT * FROM notes ORDER BY id DESC LIMIT 3"},
		},
	}
	s := &fakeSource{tables: []string{"tags", "notes", "logs"}}

	items, err := Plan(ctx, src, s, limitOf(10))
	require.NoError(t, err)

	t.Run("item count is tables plus custom queries", func(t *testing.T) {
		assert.Len(t, items, 5)
	})

	t.Run("tables are ordered lexicographically", func(t *testing.T) {
		assert.Equal(t, "logs", items[0].OutputStem)
		assert.Equal(t, "notes", items[1].OutputStem)
		assert.Equal(t, "tags", items[2].OutputStem)
	})

	t.Run("limits are resolved into the SQL", func(t *testing.T) {
		assert.Equal(t, "SELECT * FROM logs LIMIT 0", items[0].SQL)
		assert.Equal(t, "SELECT * FROM notes LIMIT 10", items[1].SQL)
		assert.Equal(t, "SELECT * FROM tags", items[2].SQL)
	})

	t.Run("custom queries follow tables in configuration order", func(t *testing.T) {
		assert.Equal(t, KindQuery, items[3].Kind)
		assert.Equal(t, "summary", items[3].OutputStem)
		assert.Equal(t, "notes", items[4].OutputStem)
		assert.Equal(t, "SELECT * FROM notes ORDER BY id DESC LIMIT 3", items[4].SQL)
	})

	t.Run("custom queries carry no injected limit", func(t *testing.T) {
		assert.Nil(t, items[3].Limit)
		assert.Nil(t, items[4].Limit)
	})

	t.Run("colliding stems keep the later item", func(t *testing.T) {
		// Both items[1] and items[4] write notes.parquet; items[4] runs
		// last so its output survives.
		assert.Equal(t, items[1].OutputStem, items[4].OutputStem)
		assert.True(t, items[4].Kind == KindQuery)
	})
}

func TestPlanNoTables(t *testing.T) {
	src := &config.SourceConfig{
		Name:          "db",
		Engine:        config.EngineSQLite,
		CustomQueries: []config.CustomQuery{{Name: "one", Query: "SELECT 1"}},
	}
	items, err := Plan(context.Background(), src, &fakeSource{}, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindQuery, items[0].Kind)
}

func TestPlanDiscoveryFailure(t *testing.T) {
	src := &config.SourceConfig{Name: "db", Engine: config.EngineSQLite}
	s := &fakeSource{discoverErr: perrors.New(perrors.ErrorTypeConnection, "gone")}

	_, err := Plan(context.Background(), src, s, nil)
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeConnection))
}
