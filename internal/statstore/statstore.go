// Package statstore reads statistics snapshots produced by the external
// introspection worker. A snapshot is a SQLite file with per-table row
// counts and per-column distinct counts; the loaded statistics feed the
// graph builder so cost estimation runs on real numbers instead of the
// default scan size.
//
// The store is strictly read-only: compiled SQL is never executed here.
package statstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// DefaultCardinalityThreshold separates high-cardinality columns from low
// when classifying distinct counts. Columns at or below it hint low.
const DefaultCardinalityThreshold int64 = 1000

// TableStats is one table's snapshot row.
type TableStats struct {
	Table    string
	RowCount int64
}

// ColumnStats is one column's snapshot row. DistinctCount is -1 when the
// worker could not sample the column.
type ColumnStats struct {
	Table         string
	Column        string
	DistinctCount int64
}

// Stats is a loaded snapshot.
type Stats struct {
	Tables  []TableStats
	Columns []ColumnStats
}

// RowCount returns a table's row count.
func (s *Stats) RowCount(table string) (int64, bool) {
	for _, t := range s.Tables {
		if t.Table == table {
			return t.RowCount, true
		}
	}
	return 0, false
}

// Cardinality classifies a column by distinct count: more than the
// threshold is high, anything else known is low.
func (s *Stats) Cardinality(table, column string, threshold int64) (high bool, known bool) {
	for _, c := range s.Columns {
		if c.Table == table && c.Column == column {
			if c.DistinctCount < 0 {
				return false, false
			}
			return c.DistinctCount > threshold, true
		}
	}
	return false, false
}

// ApplyEntity fills in the entity's row count when the snapshot covers its
// source table. Entities with already-known counts keep them.
func (s *Stats) ApplyEntity(e *model.Entity) {
	if e.RowCountKnown {
		return
	}
	table := e.Source
	if table == "" {
		table = e.Name
	}
	if n, ok := s.RowCount(table); ok {
		e.RowCount = n
		e.RowCountKnown = true
	}
}

// ApplyColumn fills in the column's cardinality hint from the snapshot's
// distinct count. Explicit hints in the model win over measured ones.
func (s *Stats) ApplyColumn(c *model.Column, source string, threshold int64) {
	if c.Cardinality != "" && c.Cardinality != model.CardinalityUnknown {
		return
	}
	if source == "" {
		source = c.Entity
	}
	high, known := s.Cardinality(source, c.Name, threshold)
	if !known {
		return
	}
	if high {
		c.Cardinality = model.CardinalityHigh
	} else {
		c.Cardinality = model.CardinalityLow
	}
}

// Load reads a snapshot file. The snapshot is opened read-only; a missing
// or malformed file is an error rather than empty statistics, so a stale
// deployment cannot silently cost-plan without numbers.
func Load(ctx context.Context, path string) (*Stats, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open statistics snapshot: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("statistics snapshot unreadable: %w", err)
	}

	stats := &Stats{}
	if stats.Tables, err = loadTables(ctx, db); err != nil {
		return nil, err
	}
	if stats.Columns, err = loadColumns(ctx, db); err != nil {
		return nil, err
	}
	return stats, nil
}

func loadTables(ctx context.Context, db *sql.DB) ([]TableStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, row_count
		FROM table_stats
		ORDER BY table_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query table stats: %w", err)
	}
	defer rows.Close()

	var out []TableStats
	for rows.Next() {
		var t TableStats
		if err := rows.Scan(&t.Table, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table stats: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table stats: %w", err)
	}
	return out, nil
}

func loadColumns(ctx context.Context, db *sql.DB) ([]ColumnStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, distinct_count
		FROM column_stats
		ORDER BY table_name ASC, column_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query column stats: %w", err)
	}
	defer rows.Close()

	var out []ColumnStats
	for rows.Next() {
		var c ColumnStats
		if err := rows.Scan(&c.Table, &c.Column, &c.DistinctCount); err != nil {
			return nil, fmt.Errorf("scan column stats: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column stats: %w", err)
	}
	return out, nil
}
