package logical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()

	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "sales", Kind: model.KindFact, Source: "fct_sales", RowCount: 1_000_000, RowCountKnown: true})
	b.AddEntity(model.Entity{Name: "customers", Kind: model.KindDimension, Source: "dim_customers", RowCount: 50_000, RowCountKnown: true})
	b.AddEntity(model.Entity{Name: "regions", Kind: model.KindDimension, Source: "dim_regions", RowCount: 20, RowCountKnown: true})
	b.AddEntity(model.Entity{Name: "audit_log", Kind: model.KindFact, Source: "fct_audit"})

	b.AddColumn(model.Column{Entity: "sales", Name: "sale_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "sales", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "sales", Name: "order_date", Type: "date"})
	b.AddColumn(model.Column{Entity: "sales", Name: "amount", Type: "numeric"})
	b.AddColumn(model.Column{Entity: "sales", Name: "cost", Type: "numeric"})
	b.AddColumn(model.Column{Entity: "sales", Name: "status", Type: "varchar", Cardinality: model.CardinalityLow})
	b.AddColumn(model.Column{Entity: "customers", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "customers", Name: "region_id", Type: "bigint", Cardinality: model.CardinalityLow})
	b.AddColumn(model.Column{Entity: "customers", Name: "region", Type: "varchar", Cardinality: model.CardinalityLow})
	b.AddColumn(model.Column{Entity: "regions", Name: "region_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "regions", Name: "name", Type: "varchar"})
	b.AddColumn(model.Column{Entity: "audit_log", Name: "event_id", Type: "bigint"})

	b.AddMeasure(model.Measure{Entity: "sales", Name: "revenue", Expression: "SUM(@amount)"})
	b.AddMeasure(model.Measure{Entity: "sales", Name: "order_count", Expression: "COUNT()"})

	b.AddReference(
		model.ColumnRef{Entity: "sales", Column: "customer_id"},
		model.ColumnRef{Entity: "customers", Column: "customer_id"},
		graph.ProvenanceForeignKey, 1.0,
	)
	b.AddReference(
		model.ColumnRef{Entity: "customers", Column: "region_id"},
		model.ColumnRef{Entity: "regions", Column: "region_id"},
		graph.ProvenanceForeignKey, 1.0,
	)

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestBuildPlan_EmptyFromFails(t *testing.T) {
	g := testGraph(t)

	_, err := BuildPlan(g, model.Report{Name: "empty"})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeEmptyFrom, lerr.Code)
	assert.Equal(t, "empty", lerr.Report)
}

func TestBuildPlan_SingleTableHasNoJoin(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
	})
	require.NoError(t, err)

	assert.False(t, hasNode(plan, func(n Node) bool {
		_, ok := n.(*Join)
		return ok
	}), "single-table report must not contain a join node")
}

func TestBuildPlan_ColumnOnlyShowHasNoAggregate(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowColumn{Column: model.ColumnRef{Entity: "sales", Column: "status"}}},
	})
	require.NoError(t, err)

	assert.False(t, hasNode(plan, func(n Node) bool {
		_, ok := n.(*Aggregate)
		return ok
	}), "column-only report must not contain an aggregate node")
}

func TestBuildPlan_MultiHopExpandsPerHop(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From: []string{"sales", "regions"},
		Show: []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
	})
	require.NoError(t, err)

	joins := 0
	walk(plan, func(n Node) {
		if _, ok := n.(*Join); ok {
			joins++
		}
	})
	assert.Equal(t, 2, joins, "sales→regions routes through customers, one join per hop")
	assert.Equal(t, []string{"sales", "customers", "regions"}, Tables(plan))
}

func TestBuildPlan_NoJoinPathNamesBothTables(t *testing.T) {
	g := testGraph(t)

	_, err := BuildPlan(g, model.Report{
		From: []string{"sales", "audit_log"},
		Show: []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
	})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeNoJoinPath, lerr.Code)
	assert.Equal(t, "sales", lerr.From)
	assert.Equal(t, "audit_log", lerr.To)
}

func TestBuildPlan_FiltersBecomeOneNode(t *testing.T) {
	g := testGraph(t)

	f1, err := model.ParseExpr("sales.status = 'complete'")
	require.NoError(t, err)
	f2, err := model.ParseExpr("sales.amount > 0")
	require.NoError(t, err)

	plan, err := BuildPlan(g, model.Report{
		From:    []string{"sales"},
		Show:    []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
		Filters: []model.Expr{f1, f2},
	})
	require.NoError(t, err)

	var filters []*Filter
	walk(plan, func(n Node) {
		if f, ok := n.(*Filter); ok {
			filters = append(filters, f)
		}
	})
	require.Len(t, filters, 1, "all filters fold into one node")
	assert.Len(t, filters[0].Predicates, 2)
}

func TestBuildPlan_GroupKeysUnionShowColumns(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From:  []string{"sales", "customers"},
		Group: []string{"customers.region", "status"},
		Show: []model.ShowItem{
			model.ShowColumn{Column: model.ColumnRef{Entity: "customers", Column: "region"}},
			model.ShowMeasure{Measure: "revenue"},
			model.ShowColumn{Column: model.ColumnRef{Entity: "sales", Column: "status"}},
		},
	})
	require.NoError(t, err)

	agg := findAggregate(t, plan)
	// customers.region appears in both group and show: first occurrence
	// wins; bare "status" is qualified by the base entity and de-duplicates
	// against the show item.
	assert.Equal(t, []model.ColumnRef{
		{Entity: "customers", Column: "region"},
		{Entity: "sales", Column: "status"},
	}, agg.GroupBy)
}

func TestBuildPlan_MeasureExpandedOnce(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{
			model.ShowMeasure{Measure: "revenue"},
			model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"},
		},
	})
	require.NoError(t, err)

	agg := findAggregate(t, plan)
	assert.Len(t, agg.Measures, 1, "the same measure requested twice expands once")
}

func TestBuildPlan_TimeMeasureWrapperAndCalendar(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"}},
	})
	require.NoError(t, err)

	var tm *TimeMeasure
	walk(plan, func(n Node) {
		if v, ok := n.(*TimeMeasure); ok {
			tm = v
		}
	})
	require.NotNil(t, tm)
	assert.Equal(t, ToDate{Unit: UnitYear}, tm.Modifier)
	assert.Equal(t, "revenue_ytd", tm.Alias)
	// No use_date given: first temporal column on the base entity.
	assert.Equal(t, model.ColumnRef{Entity: "sales", Column: "order_date"}, tm.Calendar)
}

func TestBuildPlan_ExplicitUseDateWins(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From:    []string{"sales"},
		UseDate: []string{"sales.order_date"},
		Show:    []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "mtd"}},
	})
	require.NoError(t, err)

	var tm *TimeMeasure
	walk(plan, func(n Node) {
		if v, ok := n.(*TimeMeasure); ok {
			tm = v
		}
	})
	require.NotNil(t, tm)
	assert.Equal(t, model.ColumnRef{Entity: "sales", Column: "order_date"}, tm.Calendar)
}

func TestBuildPlan_MissingCalendarFails(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "facts", Kind: model.KindFact})
	b.AddColumn(model.Column{Entity: "facts", Name: "v", Type: "numeric"})
	b.AddMeasure(model.Measure{Entity: "facts", Name: "total", Expression: "SUM(@v)"})
	g, err := b.Build()
	require.NoError(t, err)

	_, err = BuildPlan(g, model.Report{
		From: []string{"facts"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "total", Suffix: "ytd"}},
	})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeMissingCalendar, lerr.Code)
	assert.Equal(t, "facts", lerr.Entity)
}

func TestBuildPlan_UnknownTimeSuffix(t *testing.T) {
	g := testGraph(t)

	_, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "fortnightly"}},
	})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeUnknownTimeSuffix, lerr.Code)
	assert.Equal(t, "fortnightly", lerr.Suffix)
}

func TestBuildPlan_UnknownMeasure(t *testing.T) {
	g := testGraph(t)

	_, err := BuildPlan(g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasure{Measure: "churn"}},
	})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeUnknownMeasure, lerr.Code)
	assert.Equal(t, "churn", lerr.Measure)
}

func TestBuildPlan_SortAndLimitWrap(t *testing.T) {
	g := testGraph(t)

	plan, err := BuildPlan(g, model.Report{
		From:  []string{"sales"},
		Show:  []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
		Sort:  []model.SortKey{{Column: model.ColumnRef{Column: "status"}, Descending: true}},
		Limit: 25,
	})
	require.NoError(t, err)

	limit, ok := plan.(*Limit)
	require.True(t, ok, "limit is the outermost wrapper")
	assert.Equal(t, 25, limit.Count)

	sort, ok := limit.Input.(*Sort)
	require.True(t, ok)
	assert.Equal(t, model.ColumnRef{Entity: "sales", Column: "status"}, sort.Keys[0].Column)
}

func TestParseTimeSuffix_Table(t *testing.T) {
	cases := []struct {
		suffix string
		want   TimeModifier
	}{
		{"ytd", ToDate{Unit: UnitYear}},
		{"qtd", ToDate{Unit: UnitQuarter}},
		{"mtd", ToDate{Unit: UnitMonth}},
		{"prior_year", Prior{Periods: 1, Unit: UnitYear}},
		{"prior_quarter", Prior{Periods: 1, Unit: UnitQuarter}},
		{"prior_month", Prior{Periods: 1, Unit: UnitMonth}},
		{"prior_week", Prior{Periods: 1, Unit: UnitWeek}},
		{"prior_year_growth", Growth{Prior: Prior{Periods: 1, Unit: UnitYear}}},
		{"year_growth", Growth{Prior: Prior{Periods: 1, Unit: UnitYear}}},
		{"month_delta", Delta{Prior: Prior{Periods: 1, Unit: UnitMonth}}},
		{"rolling_3m", Rolling{Periods: 3, Unit: UnitMonth, Agg: RollSum}},
		{"rolling_12m_avg", Rolling{Periods: 12, Unit: UnitMonth, Agg: RollAvg}},
	}
	for _, tc := range cases {
		got, err := ParseTimeSuffix("revenue", tc.suffix)
		require.NoError(t, err, "suffix %q", tc.suffix)
		assert.Equal(t, tc.want, got, "suffix %q", tc.suffix)
	}

	for _, bad := range []string{"", "ytd2", "rolling_m", "rolling_0m", "growth", "prior_decade"} {
		_, err := ParseTimeSuffix("revenue", bad)
		assert.Error(t, err, "suffix %q must be rejected", bad)
	}
}

// walk visits every node of the tree, top-down.
func walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *Join:
		walk(v.Left, visit)
		walk(v.Right, visit)
	case *Filter:
		walk(v.Input, visit)
	case *Aggregate:
		walk(v.Input, visit)
	case *TimeMeasure:
		walk(v.Input, visit)
	case *InlineMeasure:
		walk(v.Input, visit)
	case *Project:
		walk(v.Input, visit)
	case *Sort:
		walk(v.Input, visit)
	case *Limit:
		walk(v.Input, visit)
	}
}

func hasNode(n Node, pred func(Node) bool) bool {
	found := false
	walk(n, func(m Node) {
		if pred(m) {
			found = true
		}
	})
	return found
}

func findAggregate(t *testing.T, n Node) *Aggregate {
	t.Helper()
	var agg *Aggregate
	walk(n, func(m Node) {
		if a, ok := m.(*Aggregate); ok {
			agg = a
		}
	})
	require.NotNil(t, agg, "plan must contain an aggregate node")
	return agg
}
