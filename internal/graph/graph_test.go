package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// salesGraph builds the canonical test model: a sales fact joined to
// customers, customers joined to regions, and one unreachable entity.
func salesGraph(t *testing.T) *Graph {
	t.Helper()

	b := NewBuilder()
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
	b.AddMeasure(model.Measure{Entity: "sales", Name: "margin_pct", Expression: "(SUM(@amount) - SUM(@cost)) / SUM(@amount)"})
	b.AddMeasure(model.Measure{Entity: "sales", Name: "static_revenue", Expression: "SUM(sales.amount)"})

	b.AddReference(
		model.ColumnRef{Entity: "sales", Column: "customer_id"},
		model.ColumnRef{Entity: "customers", Column: "customer_id"},
		ProvenanceForeignKey, 1.0,
	)
	b.AddReference(
		model.ColumnRef{Entity: "customers", Column: "region_id"},
		model.ColumnRef{Entity: "regions", Column: "region_id"},
		ProvenanceForeignKey, 1.0,
	)

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestFindPath_Direct(t *testing.T) {
	g := salesGraph(t)

	path, err := g.FindPath("sales", "customers")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "sales", path[0].From)
	assert.Equal(t, "customers", path[0].To)
	assert.Equal(t, model.ManyToOne, path[0].Cardinality)
	assert.Equal(t, []ColumnPair{{"customer_id", "customer_id"}}, path[0].Pairs)
}

func TestFindPath_MultiHopIsShortest(t *testing.T) {
	g := salesGraph(t)

	path, err := g.FindPath("sales", "regions")
	require.NoError(t, err)
	require.Len(t, path, 2, "BFS must return the true shortest-hop distance")
	assert.Equal(t, "customers", path[0].To)
	assert.Equal(t, "regions", path[1].To)
}

func TestFindPath_ShortcutBeatsLongerRoute(t *testing.T) {
	// Diamond: a→b→d and a→d. The direct edge must win.
	b := NewBuilder()
	for _, name := range []string{"a", "b", "d"} {
		b.AddEntity(model.Entity{Name: name, Kind: model.KindFact})
		b.AddColumn(model.Column{Entity: name, Name: "id", Type: "bigint"})
		b.AddColumn(model.Column{Entity: name, Name: "other_id", Type: "bigint"})
	}
	b.AddReference(model.ColumnRef{Entity: "a", Column: "id"}, model.ColumnRef{Entity: "b", Column: "id"}, ProvenanceExplicit, 1)
	b.AddReference(model.ColumnRef{Entity: "b", Column: "other_id"}, model.ColumnRef{Entity: "d", Column: "id"}, ProvenanceExplicit, 1)
	b.AddReference(model.ColumnRef{Entity: "a", Column: "other_id"}, model.ColumnRef{Entity: "d", Column: "other_id"}, ProvenanceExplicit, 1)
	g, err := b.Build()
	require.NoError(t, err)

	path, err := g.FindPath("a", "d")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "d", path[0].To)
}

func TestFindPath_SelfIsEmpty(t *testing.T) {
	g := salesGraph(t)

	path, err := g.FindPath("sales", "sales")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFindPath_Unreachable(t *testing.T) {
	g := salesGraph(t)

	_, err := g.FindPath("sales", "audit_log")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeNoPathFound, gerr.Code)
	assert.Equal(t, "sales", gerr.From)
	assert.Equal(t, "audit_log", gerr.To)
}

func TestFindPath_UnknownEntity(t *testing.T) {
	g := salesGraph(t)

	_, err := g.FindPath("sales", "nope")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeEntityNotFound, gerr.Code)
	assert.Equal(t, "nope", gerr.Entity)
}

func TestFindPath_CaseAndUnicodeInsensitive(t *testing.T) {
	g := salesGraph(t)

	path, err := g.FindPath("Sales", "CUSTOMERS")
	require.NoError(t, err)
	assert.Len(t, path, 1)
}

func TestValidateSafePath_ManyToOneIsSafe(t *testing.T) {
	g := salesGraph(t)

	path, err := g.ValidateSafePath("sales", "regions")
	require.NoError(t, err)
	assert.Len(t, path, 2)
}

func TestValidateSafePath_OneToManyFansOut(t *testing.T) {
	g := salesGraph(t)

	_, err := g.ValidateSafePath("customers", "sales")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeUnsafeJoinPath, gerr.Code)
	assert.Contains(t, gerr.Message, "one-to-many")
}

func TestValidateSafePath_ManyToManyFansOut(t *testing.T) {
	b := NewBuilder()
	b.AddEntity(model.Entity{Name: "left", Kind: model.KindFact})
	b.AddEntity(model.Entity{Name: "right", Kind: model.KindFact})
	b.AddColumn(model.Column{Entity: "left", Name: "tag", Type: "varchar"})
	b.AddColumn(model.Column{Entity: "right", Name: "tag", Type: "varchar"})
	b.AddReference(model.ColumnRef{Entity: "left", Column: "tag"}, model.ColumnRef{Entity: "right", Column: "tag"}, ProvenanceStatistical, 0.7)
	b.Relate("left", "right", model.ManyToMany)
	g, err := b.Build()
	require.NoError(t, err)

	_, err = g.ValidateSafePath("left", "right")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeUnsafeJoinPath, gerr.Code)
}

func TestInferGrain_LargestKnownRowCount(t *testing.T) {
	g := salesGraph(t)

	grain, err := g.InferGrain([]string{"regions", "customers", "sales"})
	require.NoError(t, err)
	assert.Equal(t, "sales", grain)
}

func TestInferGrain_NoStatisticsFallsBackToFirst(t *testing.T) {
	b := NewBuilder()
	b.AddEntity(model.Entity{Name: "one", Kind: model.KindFact})
	b.AddEntity(model.Entity{Name: "two", Kind: model.KindFact})
	g, err := b.Build()
	require.NoError(t, err)

	grain, err := g.InferGrain([]string{"two", "one"})
	require.NoError(t, err)
	assert.Equal(t, "two", grain)
}

func TestInferGrain_UnknownEntity(t *testing.T) {
	g := salesGraph(t)

	_, err := g.InferGrain([]string{"sales", "missing"})
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeEntityNotFound, gerr.Code)
}

func TestExpandMeasure_ResolvesAtoms(t *testing.T) {
	g := salesGraph(t)

	em, err := g.ExpandMeasure("sales", "revenue")
	require.NoError(t, err)
	assert.Equal(t, "revenue", em.Name)
	assert.Equal(t, "sales", em.Entity)
	assert.False(t, model.HasAtoms(em.Expr))

	call, ok := em.Expr.(model.FuncCall)
	require.True(t, ok)
	assert.Equal(t, model.ColRef{Ref: model.ColumnRef{Entity: "sales", Column: "amount"}}, call.Args[0])
}

func TestExpandMeasure_IdempotentOnAtomFreeExpression(t *testing.T) {
	g := salesGraph(t)

	em, err := g.ExpandMeasure("sales", "static_revenue")
	require.NoError(t, err)

	parsed, err := model.ParseExpr("SUM(sales.amount)")
	require.NoError(t, err)
	assert.Equal(t, parsed, em.Expr, "expansion must not alter atom-free expressions")
}

func TestExpandMeasure_NotFound(t *testing.T) {
	g := salesGraph(t)

	_, err := g.ExpandMeasure("sales", "churn")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeMeasureNotFound, gerr.Code)
	assert.Equal(t, "churn", gerr.Measure)
}

func TestBuild_InvalidMeasureExpression(t *testing.T) {
	b := NewBuilder()
	b.AddEntity(model.Entity{Name: "sales", Kind: model.KindFact})
	b.AddMeasure(model.Measure{Entity: "sales", Name: "broken", Expression: "SUM(@amount"})

	_, err := b.Build()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ErrCodeInvalidExpression, gerr.Code)
	assert.Equal(t, "broken", gerr.Measure)
	assert.True(t, errors.Unwrap(gerr) != nil, "parser message must be preserved")
}

func TestBuild_DerivesDependsOn(t *testing.T) {
	g := salesGraph(t)

	var cols []string
	for _, d := range g.Depends() {
		if d.Measure == "margin_pct" {
			cols = append(cols, d.Column)
		}
	}
	assert.Equal(t, []string{"amount", "cost"}, cols)
}

func TestBuild_DuplicateEntity(t *testing.T) {
	b := NewBuilder()
	b.AddEntity(model.Entity{Name: "sales"})
	b.AddEntity(model.Entity{Name: "Sales"})
	_, err := b.Build()
	assert.Error(t, err)
}

func TestRowCountAccessors(t *testing.T) {
	g := salesGraph(t)

	n, known := g.RowCount("sales")
	assert.True(t, known)
	assert.Equal(t, int64(1_000_000), n)

	_, known = g.RowCount("audit_log")
	assert.False(t, known)

	assert.Equal(t, model.CardinalityLow, g.ColumnCardinality("sales", "status"))
	assert.Equal(t, model.CardinalityUnknown, g.ColumnCardinality("sales", "nope"))

	col, ok := g.FirstTemporalColumn("sales")
	require.True(t, ok)
	assert.Equal(t, "order_date", col.Name)
}
