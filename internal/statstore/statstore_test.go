package statstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// writeSnapshot creates a snapshot file with the statistics tables the
// introspection worker emits.
func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE table_stats (table_name TEXT PRIMARY KEY, row_count INTEGER NOT NULL)`,
		`CREATE TABLE column_stats (table_name TEXT NOT NULL, column_name TEXT NOT NULL, distinct_count INTEGER NOT NULL)`,
		`INSERT INTO table_stats VALUES ('fct_sales', 1000000)`,
		`INSERT INTO table_stats VALUES ('dim_customers', 50000)`,
		`INSERT INTO column_stats VALUES ('fct_sales', 'customer_id', 48000)`,
		`INSERT INTO column_stats VALUES ('fct_sales', 'status', 4)`,
		`INSERT INTO column_stats VALUES ('dim_customers', 'signup_date', -1)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	stats, err := Load(context.Background(), writeSnapshot(t))
	require.NoError(t, err)

	require.Len(t, stats.Tables, 2)
	// deterministic order by table name
	assert.Equal(t, "dim_customers", stats.Tables[0].Table)
	assert.Equal(t, "fct_sales", stats.Tables[1].Table)

	n, ok := stats.RowCount("fct_sales")
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), n)

	_, ok = stats.RowCount("fct_returns")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
}

func TestCardinality(t *testing.T) {
	stats, err := Load(context.Background(), writeSnapshot(t))
	require.NoError(t, err)

	high, known := stats.Cardinality("fct_sales", "customer_id", DefaultCardinalityThreshold)
	assert.True(t, known)
	assert.True(t, high)

	high, known = stats.Cardinality("fct_sales", "status", DefaultCardinalityThreshold)
	assert.True(t, known)
	assert.False(t, high)

	// unsampled columns stay unknown
	_, known = stats.Cardinality("dim_customers", "signup_date", DefaultCardinalityThreshold)
	assert.False(t, known)

	_, known = stats.Cardinality("fct_sales", "nope", DefaultCardinalityThreshold)
	assert.False(t, known)
}

func TestApplyEntity(t *testing.T) {
	stats, err := Load(context.Background(), writeSnapshot(t))
	require.NoError(t, err)

	e := model.Entity{Name: "sales", Source: "fct_sales"}
	stats.ApplyEntity(&e)
	assert.True(t, e.RowCountKnown)
	assert.Equal(t, int64(1_000_000), e.RowCount)

	// a known count from the model is not overwritten
	fixed := model.Entity{Name: "sales", Source: "fct_sales", RowCount: 42, RowCountKnown: true}
	stats.ApplyEntity(&fixed)
	assert.Equal(t, int64(42), fixed.RowCount)

	// falls back to the entity name when no source is set
	named := model.Entity{Name: "fct_sales"}
	stats.ApplyEntity(&named)
	assert.True(t, named.RowCountKnown)
}

func TestApplyColumn(t *testing.T) {
	stats, err := Load(context.Background(), writeSnapshot(t))
	require.NoError(t, err)

	c := model.Column{Entity: "sales", Name: "customer_id"}
	stats.ApplyColumn(&c, "fct_sales", DefaultCardinalityThreshold)
	assert.Equal(t, model.CardinalityHigh, c.Cardinality)

	low := model.Column{Entity: "sales", Name: "status"}
	stats.ApplyColumn(&low, "fct_sales", DefaultCardinalityThreshold)
	assert.Equal(t, model.CardinalityLow, low.Cardinality)

	// explicit model hints win over measured ones
	hinted := model.Column{Entity: "sales", Name: "status", Cardinality: model.CardinalityHigh}
	stats.ApplyColumn(&hinted, "fct_sales", DefaultCardinalityThreshold)
	assert.Equal(t, model.CardinalityHigh, hinted.Cardinality)

	unsampled := model.Column{Entity: "customers", Name: "signup_date"}
	stats.ApplyColumn(&unsampled, "dim_customers", DefaultCardinalityThreshold)
	assert.Equal(t, model.CardinalityHint(""), unsampled.Cardinality)
}
