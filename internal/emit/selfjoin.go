package emit

import (
	"fmt"

	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

// buildSelfJoinMeasure emits a time measure as a correlated scalar
// subquery against a second copy of the measure's fact table. Used on
// dialects without window functions. The subquery re-aggregates the raw
// fact rows whose calendar value falls in the modifier's period, correlated
// to the outer row through the calendar and every group key; keys on other
// entities join their entity into the subquery along the fact's path.
func (b *builder) buildSelfJoinMeasure(v *physical.TimeMeasure) error {
	innerAlias := v.Measure.Entity + "_cmp"
	innerCtx := sqlir.AliasContext{
		Base:    v.Measure.Entity,
		Aliases: map[string]string{v.Measure.Entity: innerAlias},
	}
	aggInner, err := sqlir.Convert(v.Measure.Expr, innerCtx)
	if err != nil {
		return fmt.Errorf("emit: self-join measure %q: %w", v.Alias, err)
	}

	outerCal := sqlir.Column{Table: b.ctx.Alias(v.Calendar.Entity), Name: v.Calendar.Column}
	innerCal := sqlir.Column{Table: innerAlias, Name: v.Calendar.Column}

	inner := &sqlir.Select{
		From: sqlir.TableRef{Table: b.source(v.Measure.Entity), Alias: innerAlias},
	}

	// Correlate every group key so each output row sees its own slice.
	// Fact-side keys compare against the inner copy directly; keys on
	// other entities first pull their entity into the subquery along the
	// fact's join path.
	joined := map[string]string{v.Measure.Entity: innerAlias}
	for _, k := range b.groupBy {
		if k == v.Calendar {
			continue
		}
		alias, err := b.correlateEntity(inner, v.Measure.Entity, k.Entity, joined)
		if err != nil {
			return fmt.Errorf("emit: self-join measure %q: %w", v.Alias, err)
		}
		inner.Where = append(inner.Where, sqlir.Binary{
			Op:    "=",
			Left:  sqlir.Column{Table: alias, Name: k.Column},
			Right: sqlir.Column{Table: b.ctx.Alias(k.Entity), Name: k.Column},
		})
	}

	switch m := v.Modifier.(type) {
	case logical.ToDate:
		for _, part := range periodParts(m.Unit, sqlir.Expr(innerCal)) {
			ex := part.(sqlir.Extract)
			inner.Where = append(inner.Where, sqlir.Binary{
				Op:    "=",
				Left:  ex,
				Right: sqlir.Extract{Part: ex.Part, Operand: outerCal},
			})
		}
		inner.Where = append(inner.Where, sqlir.Binary{Op: "<=", Left: innerCal, Right: outerCal})
		inner.Items = []sqlir.SelectItem{{Expr: aggInner}}
		b.computed[v.Alias] = sqlir.Subquery{Query: inner}
		return nil

	case logical.Rolling:
		inner.Where = append(inner.Where,
			sqlir.Binary{Op: ">", Left: innerCal, Right: sqlir.DateSub{Operand: outerCal, N: m.Periods, Unit: sqlir.PartMonth}},
			sqlir.Binary{Op: "<=", Left: innerCal, Right: outerCal},
		)
		expr := aggInner
		if m.Agg == logical.RollAvg {
			expr = reRoot(aggInner, "AVG")
		}
		inner.Items = []sqlir.SelectItem{{Expr: expr}}
		b.computed[v.Alias] = sqlir.Subquery{Query: inner}
		return nil

	case logical.Prior:
		b.computed[v.Alias] = b.priorSubquery(inner, aggInner, innerCal, outerCal, m)
		return nil

	case logical.Growth:
		prior := b.priorSubquery(inner, aggInner, innerCal, outerCal, m.Prior)
		cur, err := b.measureExpr(v.Measure)
		if err != nil {
			return err
		}
		b.computed[v.Alias] = sqlir.Binary{
			Op:    "/",
			Left:  sqlir.Binary{Op: "-", Left: cur, Right: prior},
			Right: prior,
		}
		return nil

	case logical.Delta:
		prior := b.priorSubquery(inner, aggInner, innerCal, outerCal, m.Prior)
		cur, err := b.measureExpr(v.Measure)
		if err != nil {
			return err
		}
		b.computed[v.Alias] = sqlir.Binary{Op: "-", Left: cur, Right: prior}
		return nil
	}
	return fmt.Errorf("emit: unhandled time modifier %T for %q", v.Modifier, v.Alias)
}

// correlateEntity makes an entity addressable inside the subquery, joining
// the fact's path to it hop by hop. Every inner copy is aliased
// <entity>_cmp so it never collides with the outer query's aliases.
func (b *builder) correlateEntity(inner *sqlir.Select, fact, entity string, joined map[string]string) (string, error) {
	if alias, ok := joined[entity]; ok {
		return alias, nil
	}
	path, err := b.g.FindPath(fact, entity)
	if err != nil {
		return "", err
	}
	for _, step := range path {
		if _, ok := joined[step.To]; ok {
			continue
		}
		alias := step.To + "_cmp"
		var on []sqlir.Expr
		for _, pair := range step.Pairs {
			on = append(on, sqlir.Binary{
				Op:    "=",
				Left:  sqlir.Column{Table: joined[step.From], Name: pair.FromColumn},
				Right: sqlir.Column{Table: alias, Name: pair.ToColumn},
			})
		}
		inner.Joins = append(inner.Joins, sqlir.JoinClause{
			Ref: sqlir.TableRef{Table: b.source(step.To), Alias: alias},
			On:  sqlir.AndAll(on),
		})
		joined[step.To] = alias
	}
	return joined[entity], nil
}

// priorSubquery correlates the inner copy to the calendar value shifted
// back by the prior offset.
func (b *builder) priorSubquery(inner *sqlir.Select, agg sqlir.Expr, innerCal, outerCal sqlir.Column, m logical.Prior) sqlir.Expr {
	inner.Where = append(inner.Where, sqlir.Binary{
		Op:    "=",
		Left:  innerCal,
		Right: sqlir.DateSub{Operand: outerCal, N: m.Periods, Unit: sqlir.DatePart(m.Unit)},
	})
	inner.Items = []sqlir.SelectItem{{Expr: agg}}
	return sqlir.Subquery{Query: inner}
}

// reRoot swaps the root function of an aggregate expression.
func reRoot(e sqlir.Expr, name string) sqlir.Expr {
	if f, ok := e.(sqlir.Func); ok {
		f.Name = name
		return f
	}
	return sqlir.Func{Name: name, Args: []sqlir.Expr{e}}
}
