package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

const validReport = `
name: regional_revenue
from: [sales, customers]
show:
  - measure: revenue
  - measure: revenue
    suffix: ytd
  - column: customers.region
  - expr: "sales.amount * 2"
    as: doubled
group: [customers.region, sales.order_date]
filters:
  - "sales.status = 'complete'"
sort:
  - by: revenue
    desc: true
limit: 10
`

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadReport_Valid(t *testing.T) {
	r, err := LoadReport(writeReport(t, validReport))
	require.NoError(t, err)

	assert.Equal(t, "regional_revenue", r.Name)
	assert.Equal(t, []string{"sales", "customers"}, r.From)
	assert.Equal(t, []string{"customers.region", "sales.order_date"}, r.Group)
	assert.Equal(t, 10, r.Limit)

	require.Len(t, r.Show, 4)
	assert.Equal(t, model.ShowMeasure{Measure: "revenue"}, r.Show[0])
	assert.Equal(t, model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"}, r.Show[1])
	assert.Equal(t, model.ShowColumn{Column: model.ColumnRef{Entity: "customers", Column: "region"}}, r.Show[2])
	inline, ok := r.Show[3].(model.ShowInline)
	require.True(t, ok)
	assert.Equal(t, "doubled", inline.Name)
	assert.NotNil(t, inline.Expr)

	require.Len(t, r.Filters, 1)
	require.Len(t, r.Sort, 1)
	assert.Equal(t, model.ColumnRef{Column: "revenue"}, r.Sort[0].Column)
	assert.True(t, r.Sort[0].Descending)
}

func TestLoadReport_MissingFile(t *testing.T) {
	_, err := LoadReport(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadReport_BadYAML(t *testing.T) {
	_, err := LoadReport(writeReport(t, "from: [sales\n"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeReportParse, loadErr.Code)
}

func TestLoadReport_ShowItemShapes(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"measure and column together", "from: [sales]\nshow:\n  - measure: revenue\n    column: sales.amount\n"},
		{"empty item", "from: [sales]\nshow:\n  - suffix: ytd\n"},
		{"suffix on column", "from: [sales]\nshow:\n  - column: sales.amount\n    suffix: ytd\n"},
		{"expr without alias", "from: [sales]\nshow:\n  - expr: \"amount * 2\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadReport(writeReport(t, tc.yaml))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, ErrCodeReportInvalid, loadErr.Code)
		})
	}
}

func TestLoadReport_BadFilterExpression(t *testing.T) {
	_, err := LoadReport(writeReport(t, "from: [sales]\nfilters:\n  - \"status = \"\n"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeReportInvalid, loadErr.Code)
	assert.Contains(t, loadErr.Message, "filters[0]")
}

func TestLoadReport_DefaultsNameToPath(t *testing.T) {
	path := writeReport(t, "from: [sales]\nshow:\n  - measure: revenue\n")
	r, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, path, r.Name)
}

func TestLoadReport_Period(t *testing.T) {
	r, err := LoadReport(writeReport(t, "from: [sales]\nuse_date: [sales.order_date]\nperiod: \"sales.order_date >= '2024-01-01'\"\nshow:\n  - measure: revenue\n"))
	require.NoError(t, err)
	assert.NotNil(t, r.Period)
	assert.Equal(t, []string{"sales.order_date"}, r.UseDate)
}
