package physical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()

	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "sales", Kind: model.KindFact, Source: "fct_sales", RowCount: 1_000_000, RowCountKnown: true})
	b.AddEntity(model.Entity{Name: "customers", Kind: model.KindDimension, Source: "dim_customers", RowCount: 50_000, RowCountKnown: true})
	b.AddEntity(model.Entity{Name: "regions", Kind: model.KindDimension, Source: "dim_regions", RowCount: 20, RowCountKnown: true})

	b.AddColumn(model.Column{Entity: "sales", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "sales", Name: "order_date", Type: "date"})
	b.AddColumn(model.Column{Entity: "sales", Name: "amount", Type: "numeric"})
	b.AddColumn(model.Column{Entity: "customers", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "customers", Name: "region_id", Type: "bigint", Cardinality: model.CardinalityLow})
	b.AddColumn(model.Column{Entity: "customers", Name: "region", Type: "varchar", Cardinality: model.CardinalityLow})
	b.AddColumn(model.Column{Entity: "regions", Name: "region_id", Type: "bigint", Cardinality: model.CardinalityHigh})

	b.AddMeasure(model.Measure{Entity: "sales", Name: "revenue", Expression: "SUM(@amount)"})

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

func buildLogical(t *testing.T, g *graph.Graph, r model.Report) logical.Node {
	t.Helper()
	plan, err := logical.BuildPlan(g, r)
	require.NoError(t, err)
	return plan
}

func TestGenerate_SingleScan(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowColumn{Column: model.ColumnRef{Entity: "sales", Column: "amount"}}},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, err)
	require.Len(t, cands, 1)

	scan := findScan(t, cands[0], "sales")
	assert.Equal(t, ScanFull, scan.Strategy)
}

func TestGenerate_JoinCrossesOrdersAlgosAndAccessPaths(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From: []string{"sales", "customers"},
		Show: []model.ShowItem{model.ShowColumn{Column: model.ColumnRef{Entity: "customers", Column: "region"}}},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, err)

	// Two connected orders, each crossing {hash, nested loop} with
	// {full, index} on the entered side.
	assert.Len(t, cands, 8)

	algos := map[JoinAlgo]bool{}
	strategies := map[ScanStrategy]bool{}
	for _, c := range cands {
		walkNodes(c, func(n Node) {
			switch v := n.(type) {
			case *Join:
				algos[v.Algo] = true
			case *Scan:
				strategies[v.Strategy] = true
			}
		})
	}
	assert.True(t, algos[JoinHash])
	assert.True(t, algos[JoinNestedLoop])
	assert.True(t, strategies[ScanFull])
	assert.True(t, strategies[ScanIndex])
}

func TestGenerate_IndexScanNeedsHighCardinalityKey(t *testing.T) {
	g := testGraph(t)
	// regions is entered through region_id which is high-cardinality on
	// regions, so the index path exists; but entering customers from
	// regions uses customers.region_id which is low-cardinality.
	plan := buildLogical(t, g, model.Report{
		From: []string{"regions", "customers"},
		Show: []model.ShowItem{model.ShowColumn{Column: model.ColumnRef{Entity: "customers", Column: "region"}}},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, err)

	for _, c := range cands {
		walkNodes(c, func(n Node) {
			if s, ok := n.(*Scan); ok && s.Entity == "customers" {
				assert.Equal(t, ScanFull, s.Strategy, "low-cardinality entry key must not produce an index scan")
			}
		})
	}
}

func TestGenerate_TimeMeasureWindowOnly(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"}},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectPostgres})
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		tm := findTimeMeasure(t, c)
		assert.Equal(t, TimeWindow, tm.Strategy)
	}
}

func TestGenerate_TimeMeasureSelfJoinFallback(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"}},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectMySQL56, EnableSelfJoinFallback: true})
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		tm := findTimeMeasure(t, c)
		assert.Equal(t, TimeSelfJoin, tm.Strategy)
	}
}

func TestGenerate_TimeMeasureNoStrategyFails(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From: []string{"sales"},
		Show: []model.ShowItem{model.ShowMeasureSuffix{Measure: "revenue", Suffix: "ytd"}},
	})

	_, err := Generate(g, plan, Options{Dialect: sqlir.DialectMySQL56})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeNoValidStrategy, perr.Code)
	assert.Equal(t, "mysql56", perr.Dialect)
}

func TestGenerate_PreAggregateCandidatePresent(t *testing.T) {
	g := testGraph(t)
	plan := buildLogical(t, g, model.Report{
		From:  []string{"sales", "customers"},
		Group: []string{"customers.region"},
		Show: []model.ShowItem{
			model.ShowColumn{Column: model.ColumnRef{Entity: "customers", Column: "region"}},
			model.ShowMeasure{Measure: "revenue"},
		},
	})

	cands, err := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, err)

	var pre *Aggregate
	for _, c := range cands {
		walkNodes(c, func(n Node) {
			if a, ok := n.(*Aggregate); ok && a.Mode == AggPartial {
				pre = a
			}
		})
	}
	require.NotNil(t, pre, "decomposable fact measure must yield a pre-aggregate candidate")
	assert.Equal(t, []model.ColumnRef{{Entity: "sales", Column: "customer_id"}}, pre.GroupBy)

	scan, ok := pre.Input.(*Scan)
	require.True(t, ok, "partial aggregate sits directly on the fact scan")
	assert.Equal(t, "sales", scan.Entity)
}

func TestGenerate_PreAggregateSkippedForDimensionFilter(t *testing.T) {
	g := testGraph(t)
	pred, err := model.ParseExpr("customers.region = 'EMEA'")
	require.NoError(t, err)

	plan := buildLogical(t, g, model.Report{
		From:    []string{"sales", "customers"},
		Group:   []string{"customers.region"},
		Show:    []model.ShowItem{model.ShowMeasure{Measure: "revenue"}},
		Filters: []model.Expr{pred},
	})

	cands, genErr := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, genErr)

	for _, c := range cands {
		walkNodes(c, func(n Node) {
			if a, ok := n.(*Aggregate); ok {
				assert.Equal(t, AggSingle, a.Mode, "a dimension filter cannot be pushed below the join")
			}
		})
	}
}

func TestGenerate_PreAggregateSkippedOnFanOutPath(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "customers", Kind: model.KindDimension, Source: "dim_customers"})
	b.AddEntity(model.Entity{Name: "sales", Kind: model.KindFact, Source: "fct_sales"})
	b.AddColumn(model.Column{Entity: "customers", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "sales", Name: "customer_id", Type: "bigint", Cardinality: model.CardinalityHigh})
	b.AddColumn(model.Column{Entity: "sales", Name: "status", Type: "varchar", Cardinality: model.CardinalityLow})
	b.AddMeasure(model.Measure{Entity: "customers", Name: "customer_count", Expression: "COUNT()"})
	b.AddReference(
		model.ColumnRef{Entity: "sales", Column: "customer_id"},
		model.ColumnRef{Entity: "customers", Column: "customer_id"},
		graph.ProvenanceForeignKey, 1.0,
	)
	g, err := b.Build()
	require.NoError(t, err)

	// customers -> sales traverses the one side of the relationship, so
	// compacting customers first would double count after the join
	plan := buildLogical(t, g, model.Report{
		From:  []string{"customers", "sales"},
		Group: []string{"sales.status"},
		Show:  []model.ShowItem{model.ShowMeasure{Measure: "customer_count"}},
	})

	cands, genErr := Generate(g, plan, Options{Dialect: sqlir.DialectDuckDB})
	require.NoError(t, genErr)

	for _, c := range cands {
		walkNodes(c, func(n Node) {
			if a, ok := n.(*Aggregate); ok {
				assert.Equal(t, AggSingle, a.Mode, "fan-out paths must not pre-aggregate")
			}
		})
	}
}

func TestJoinOrders_GreedyAboveThreshold(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "f", Kind: model.KindFact, RowCount: 1_000_000, RowCountKnown: true})
	for _, d := range []struct {
		name string
		rows int64
	}{{"d1", 500}, {"d2", 10}, {"d3", 90_000}} {
		b.AddEntity(model.Entity{Name: d.name, Kind: model.KindDimension, RowCount: d.rows, RowCountKnown: true})
		b.AddColumn(model.Column{Entity: "f", Name: d.name + "_id", Type: "bigint", Cardinality: model.CardinalityHigh})
		b.AddColumn(model.Column{Entity: d.name, Name: "id", Type: "bigint", Cardinality: model.CardinalityHigh})
		b.AddReference(
			model.ColumnRef{Entity: "f", Column: d.name + "_id"},
			model.ColumnRef{Entity: d.name, Column: "id"},
			graph.ProvenanceForeignKey, 1.0,
		)
	}
	g, err := b.Build()
	require.NoError(t, err)

	orders, err := joinOrders(g, []string{"f", "d1", "d2", "d3"}, Options{})
	require.NoError(t, err)
	require.Len(t, orders, 1, "above three tables only the greedy order is generated")
	// Every hop is fact→dimension N:1, so each extension keeps the fact's
	// row estimate; ties resolve to from-list position.
	assert.Equal(t, []string{"f", "d1", "d2", "d3"}, orders[0])
}

func TestJoinOrders_DisconnectedPairFails(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEntity(model.Entity{Name: "a", Kind: model.KindFact})
	b.AddEntity(model.Entity{Name: "b", Kind: model.KindFact})
	g, err := b.Build()
	require.NoError(t, err)

	_, err = joinOrders(g, []string{"a", "b"}, Options{})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeNoValidJoinOrder, perr.Code)
}

func walkNodes(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *Join:
		walkNodes(v.Left, visit)
		walkNodes(v.Right, visit)
	case *Filter:
		walkNodes(v.Input, visit)
	case *Aggregate:
		walkNodes(v.Input, visit)
	case *TimeMeasure:
		walkNodes(v.Input, visit)
	case *InlineMeasure:
		walkNodes(v.Input, visit)
	case *Project:
		walkNodes(v.Input, visit)
	case *Sort:
		walkNodes(v.Input, visit)
	case *Limit:
		walkNodes(v.Input, visit)
	}
}

func findScan(t *testing.T, n Node, entity string) *Scan {
	t.Helper()
	var scan *Scan
	walkNodes(n, func(m Node) {
		if s, ok := m.(*Scan); ok && s.Entity == entity {
			scan = s
		}
	})
	require.NotNil(t, scan, "candidate must scan %s", entity)
	return scan
}

func findTimeMeasure(t *testing.T, n Node) *TimeMeasure {
	t.Helper()
	var tm *TimeMeasure
	walkNodes(n, func(m Node) {
		if v, ok := m.(*TimeMeasure); ok {
			tm = v
		}
	})
	require.NotNil(t, tm, "candidate must contain a time measure")
	return tm
}
