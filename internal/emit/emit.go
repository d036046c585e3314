// Package emit assembles the selected physical plan into a SQL statement.
// Assembly is bottom-up: each node contributes its clause to a single
// select under construction, and pre-aggregated fact sides become derived
// tables in the FROM clause.
package emit

import (
	"fmt"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

// SQL renders the physical plan for the dialect.
func SQL(g *graph.Graph, plan physical.Node, d sqlir.Dialect) (string, error) {
	sel, err := Query(g, plan, d)
	if err != nil {
		return "", err
	}
	return sel.SQL(d), nil
}

// Query assembles the physical plan into a select statement.
func Query(g *graph.Graph, plan physical.Node, d sqlir.Dialect) (*sqlir.Select, error) {
	tables := tablesOf(plan)
	if len(tables) == 0 {
		return nil, fmt.Errorf("emit: plan has no tables")
	}
	b := &builder{
		g:        g,
		d:        d,
		ctx:      sqlir.NewAliasContext(tables[0], tables),
		sel:      &sqlir.Select{},
		measures: map[string]sqlir.Expr{},
		computed: map[string]sqlir.Expr{},
	}
	if err := b.build(plan); err != nil {
		return nil, err
	}
	return b.sel, nil
}

type builder struct {
	g   *graph.Graph
	d   sqlir.Dialect
	ctx sqlir.AliasContext
	sel *sqlir.Select

	// measures maps measure names to their converted aggregate
	// expressions; computed maps wrapper aliases (time and inline
	// measures) to theirs. Projection consumes both.
	measures map[string]sqlir.Expr
	computed map[string]sqlir.Expr

	groupBy []model.ColumnRef
}

func (b *builder) build(n physical.Node) error {
	switch v := n.(type) {
	case *physical.Scan:
		b.sel.From = b.tableRef(v.Entity)
		return nil

	case *physical.Join:
		if err := b.build(v.Left); err != nil {
			return err
		}
		right, ok := v.Right.(*physical.Scan)
		if !ok {
			return fmt.Errorf("emit: join right side is %T, want scan", v.Right)
		}
		on := make([]sqlir.Expr, 0, len(v.Pairs))
		for _, pair := range v.Pairs {
			on = append(on, sqlir.Binary{
				Op:    "=",
				Left:  sqlir.Column{Table: b.ctx.Alias(v.From), Name: pair.FromColumn},
				Right: sqlir.Column{Table: b.ctx.Alias(v.To), Name: pair.ToColumn},
			})
		}
		b.sel.Joins = append(b.sel.Joins, sqlir.JoinClause{
			Ref: b.tableRef(right.Entity),
			On:  sqlir.AndAll(on),
		})
		return nil

	case *physical.Filter:
		if err := b.build(v.Input); err != nil {
			return err
		}
		for _, p := range v.Predicates {
			conv, err := sqlir.Convert(p, b.ctx)
			if err != nil {
				return fmt.Errorf("emit: filter: %w", err)
			}
			b.sel.Where = append(b.sel.Where, conv)
		}
		return nil

	case *physical.Aggregate:
		return b.buildAggregate(v)

	case *physical.TimeMeasure:
		if err := b.build(v.Input); err != nil {
			return err
		}
		return b.buildTimeMeasure(v)

	case *physical.InlineMeasure:
		if err := b.build(v.Input); err != nil {
			return err
		}
		conv, err := sqlir.Convert(v.Expr, b.ctx)
		if err != nil {
			return fmt.Errorf("emit: inline measure %q: %w", v.Name, err)
		}
		b.computed[v.Name] = conv
		return nil

	case *physical.Project:
		if err := b.build(v.Input); err != nil {
			return err
		}
		for _, item := range v.Items {
			switch p := item.(type) {
			case logical.ProjectColumn:
				b.sel.Items = append(b.sel.Items, sqlir.SelectItem{
					Expr: sqlir.Column{Table: b.ctx.Alias(p.Ref.Entity), Name: p.Ref.Column},
				})
			case logical.ProjectMeasure:
				expr, ok := b.measures[p.Measure.Name]
				if !ok {
					return fmt.Errorf("emit: measure %q was never aggregated", p.Measure.Name)
				}
				b.sel.Items = append(b.sel.Items, sqlir.SelectItem{Expr: expr, Alias: p.Measure.Name})
			case logical.ProjectComputed:
				expr, ok := b.computed[p.Alias]
				if !ok {
					return fmt.Errorf("emit: computed value %q was never built", p.Alias)
				}
				b.sel.Items = append(b.sel.Items, sqlir.SelectItem{Expr: expr, Alias: p.Alias})
			}
		}
		return nil

	case *physical.Sort:
		if err := b.build(v.Input); err != nil {
			return err
		}
		for _, k := range v.Keys {
			b.sel.OrderBy = append(b.sel.OrderBy, sqlir.OrderItem{
				Expr:       b.sortExpr(k.Column),
				Descending: k.Descending,
			})
		}
		return nil

	case *physical.Limit:
		if err := b.build(v.Input); err != nil {
			return err
		}
		b.sel.Limit = v.Count
		return nil
	}
	return fmt.Errorf("emit: unhandled node %T", n)
}

// sortExpr resolves a sort key: a key naming a measure or computed output
// sorts by its alias, anything else by the qualified column.
func (b *builder) sortExpr(ref model.ColumnRef) sqlir.Expr {
	if _, ok := b.measures[ref.Column]; ok {
		return sqlir.Column{Name: ref.Column}
	}
	if _, ok := b.computed[ref.Column]; ok {
		return sqlir.Column{Name: ref.Column}
	}
	return sqlir.Column{Table: b.ctx.Alias(ref.Entity), Name: ref.Column}
}

func (b *builder) tableRef(entity string) sqlir.TableRef {
	return sqlir.TableRef{Table: b.source(entity), Alias: b.ctx.Alias(entity)}
}

// source resolves an entity's physical relation name, falling back to the
// entity name itself.
func (b *builder) source(entity string) string {
	if e, err := b.g.Entity(entity); err == nil && e.Source != "" {
		return e.Source
	}
	return entity
}

func (b *builder) buildAggregate(v *physical.Aggregate) error {
	switch v.Mode {
	case physical.AggPartial:
		// A partial aggregate at the bottom of the tree becomes a derived
		// table standing in for the fact. Its output column names match
		// the fact's join keys and measure names, so joins and the final
		// aggregate reference it through the fact's own alias.
		derived, err := b.buildPartial(v)
		if err != nil {
			return err
		}
		b.sel.From = sqlir.TableRef{Derived: derived, Alias: b.ctx.Alias(baseEntity(v.Input))}
		return nil

	case physical.AggFinal:
		if err := b.build(v.Input); err != nil {
			return err
		}
		b.groupBy = v.GroupBy
		for _, ref := range v.GroupBy {
			b.sel.GroupBy = append(b.sel.GroupBy, sqlir.Column{Table: b.ctx.Alias(ref.Entity), Name: ref.Column})
		}
		for _, m := range v.Measures {
			expr, err := reAggregate(m, b.ctx.Alias(m.Entity))
			if err != nil {
				return err
			}
			b.measures[m.Name] = expr
		}
		return nil

	default: // AggSingle
		if err := b.build(v.Input); err != nil {
			return err
		}
		b.groupBy = v.GroupBy
		for _, ref := range v.GroupBy {
			b.sel.GroupBy = append(b.sel.GroupBy, sqlir.Column{Table: b.ctx.Alias(ref.Entity), Name: ref.Column})
		}
		for _, m := range v.Measures {
			conv, err := sqlir.Convert(m.Expr, b.ctx)
			if err != nil {
				return fmt.Errorf("emit: measure %q: %w", m.Name, err)
			}
			b.measures[m.Name] = conv
		}
		return nil
	}
}

// buildPartial assembles the derived table of a pre-aggregated fact side:
// group keys selected under their own names, measures aliased to their
// measure names.
func (b *builder) buildPartial(v *physical.Aggregate) (*sqlir.Select, error) {
	base := baseEntity(v.Input)
	if base == "" {
		return nil, fmt.Errorf("emit: partial aggregate input is not a fact scan")
	}
	inner := &sqlir.Select{From: b.tableRef(base)}
	ctx := sqlir.NewAliasContext(base, []string{base})

	if f, ok := v.Input.(*physical.Filter); ok {
		for _, p := range f.Predicates {
			conv, err := sqlir.Convert(p, ctx)
			if err != nil {
				return nil, fmt.Errorf("emit: partial aggregate filter: %w", err)
			}
			inner.Where = append(inner.Where, conv)
		}
	}
	for _, ref := range v.GroupBy {
		col := sqlir.Column{Table: base, Name: ref.Column}
		inner.GroupBy = append(inner.GroupBy, col)
		inner.Items = append(inner.Items, sqlir.SelectItem{Expr: col})
	}
	for _, m := range v.Measures {
		conv, err := sqlir.Convert(m.Expr, ctx)
		if err != nil {
			return nil, fmt.Errorf("emit: partial measure %q: %w", m.Name, err)
		}
		inner.Items = append(inner.Items, sqlir.SelectItem{Expr: conv, Alias: m.Name})
	}
	return inner, nil
}

// baseEntity finds the scanned entity under a partial aggregate's input,
// which is a scan or a filter over a scan.
func baseEntity(n physical.Node) string {
	switch v := n.(type) {
	case *physical.Scan:
		return v.Entity
	case *physical.Filter:
		return baseEntity(v.Input)
	}
	return ""
}

// reAggregate builds the final-stage expression for a partially aggregated
// measure: COUNT partials are summed, SUM/MIN/MAX reapply themselves.
func reAggregate(m graph.ExpandedMeasure, alias string) (sqlir.Expr, error) {
	f, ok := m.Expr.(model.FuncCall)
	if !ok {
		return nil, fmt.Errorf("emit: measure %q is not decomposable", m.Name)
	}
	name := f.Name
	if name == "COUNT" {
		name = "SUM"
	}
	return sqlir.Func{Name: name, Args: []sqlir.Expr{sqlir.Column{Table: alias, Name: m.Name}}}, nil
}

// tablesOf collects the physical tables of the plan in join order.
func tablesOf(n physical.Node) []string {
	switch v := n.(type) {
	case *physical.Scan:
		return []string{v.Entity}
	case *physical.Join:
		return append(tablesOf(v.Left), tablesOf(v.Right)...)
	case *physical.Filter:
		return tablesOf(v.Input)
	case *physical.Aggregate:
		if v.Mode == physical.AggPartial {
			return []string{baseEntity(v.Input)}
		}
		return tablesOf(v.Input)
	case *physical.TimeMeasure:
		return tablesOf(v.Input)
	case *physical.InlineMeasure:
		return tablesOf(v.Input)
	case *physical.Project:
		return tablesOf(v.Input)
	case *physical.Sort:
		return tablesOf(v.Input)
	case *physical.Limit:
		return tablesOf(v.Input)
	}
	return nil
}
