package logical

import (
	"errors"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// BuildPlan converts a report into the logical operator tree. It is a pure
// function of (report, graph): it performs no I/O and never mutates the
// graph.
func BuildPlan(g *graph.Graph, r model.Report) (Node, error) {
	if len(r.From) == 0 {
		return nil, &Error{Code: ErrCodeEmptyFrom, Report: r.Name}
	}

	plan, err := BuildJoinTree(g, r.From)
	if err != nil {
		return nil, attachReport(err, r.Name)
	}
	base := Tables(plan)[0]

	// Filters, all AND-combined into one node. The period range, when
	// given, is one more conjunct. Unqualified columns bind to the base
	// entity here, before the optimizer reorders the join.
	preds := make([]model.Expr, 0, len(r.Filters)+1)
	for _, f := range r.Filters {
		preds = append(preds, qualifyExpr(f, base))
	}
	if r.Period != nil {
		preds = append(preds, qualifyExpr(r.Period, base))
	}
	if len(preds) > 0 {
		plan = &Filter{Input: plan, Predicates: preds}
	}

	// Expand each requested measure exactly once; wrappers and projection
	// reuse the same expansion.
	expanded := make(map[string]graph.ExpandedMeasure)
	var measures []graph.ExpandedMeasure
	resolve := func(name string) (graph.ExpandedMeasure, error) {
		if em, ok := expanded[name]; ok {
			return em, nil
		}
		em, err := resolveMeasure(g, r, name)
		if err != nil {
			return graph.ExpandedMeasure{}, attachReport(err, r.Name)
		}
		expanded[name] = em
		measures = append(measures, em)
		return em, nil
	}
	for _, item := range r.Show {
		switch v := item.(type) {
		case model.ShowMeasure:
			if _, err := resolve(v.Measure); err != nil {
				return nil, err
			}
		case model.ShowMeasureSuffix:
			if _, err := resolve(v.Measure); err != nil {
				return nil, err
			}
		}
	}

	// Aggregate only when at least one measure is requested. Group keys are
	// the explicit group items unioned, in order, with the non-measure show
	// items, de-duplicated by qualified name keeping the first occurrence.
	if len(measures) > 0 {
		groupBy, err := groupKeys(r, base)
		if err != nil {
			return nil, err
		}
		plan = &Aggregate{Input: plan, GroupBy: groupBy, Measures: measures}
	}

	// One time-measure wrapper per suffixed measure, in show order. The
	// calendar column is resolved once, on first use.
	var calendar model.ColumnRef
	haveCalendar := false
	for _, item := range r.Show {
		v, ok := item.(model.ShowMeasureSuffix)
		if !ok {
			continue
		}
		modifier, err := ParseTimeSuffix(v.Measure, v.Suffix)
		if err != nil {
			return nil, attachReport(err, r.Name)
		}
		if !haveCalendar {
			calendar, err = resolveCalendar(g, r, base)
			if err != nil {
				return nil, err
			}
			haveCalendar = true
		}
		plan = &TimeMeasure{
			Input:    plan,
			Measure:  expanded[v.Measure],
			Modifier: modifier,
			Calendar: calendar,
			Alias:    v.Alias(),
		}
	}

	// One inline-measure wrapper per user-expression show item.
	for _, item := range r.Show {
		if v, ok := item.(model.ShowInline); ok {
			plan = &InlineMeasure{Input: plan, Name: v.Name, Expr: qualifyExpr(v.Expr, base)}
		}
	}

	// Project one item per show entry, in show order.
	if len(r.Show) > 0 {
		items := make([]ProjectItem, 0, len(r.Show))
		for _, item := range r.Show {
			switch v := item.(type) {
			case model.ShowColumn:
				items = append(items, ProjectColumn{Ref: qualify(v.Column, base)})
			case model.ShowMeasure:
				items = append(items, ProjectMeasure{Measure: expanded[v.Measure]})
			case model.ShowMeasureSuffix:
				items = append(items, ProjectComputed{Alias: v.Alias()})
			case model.ShowInline:
				items = append(items, ProjectComputed{Alias: v.Name})
			}
		}
		plan = &Project{Input: plan, Items: items}
	}

	if len(r.Sort) > 0 {
		keys := make([]model.SortKey, len(r.Sort))
		for i, k := range r.Sort {
			keys[i] = model.SortKey{Column: qualify(k.Column, base), Descending: k.Descending}
		}
		plan = &Sort{Input: plan, Keys: keys}
	}

	if r.Limit > 0 {
		plan = &Limit{Input: plan, Count: r.Limit}
	}

	return plan, nil
}

// resolveMeasure finds the owning entity for a measure name. A qualified
// name ("sales.revenue") resolves directly; an unqualified name searches
// the report's from list in order.
func resolveMeasure(g *graph.Graph, r model.Report, name string) (graph.ExpandedMeasure, error) {
	if ref, err := model.ParseColumnRef(name); err == nil && ref.Entity != "" {
		em, err := g.ExpandMeasure(ref.Entity, ref.Column)
		if err != nil {
			return graph.ExpandedMeasure{}, wrapGraphErr(err, r.Name)
		}
		return em, nil
	}
	for _, ent := range r.From {
		if _, ok := g.Measure(ent, name); ok {
			em, err := g.ExpandMeasure(ent, name)
			if err != nil {
				return graph.ExpandedMeasure{}, wrapGraphErr(err, r.Name)
			}
			return em, nil
		}
	}
	return graph.ExpandedMeasure{}, &Error{Code: ErrCodeUnknownMeasure, Report: r.Name, Measure: name}
}

// groupKeys unions the explicit group items with the non-measure show
// items, in order, de-duplicated by qualified name keeping the first
// occurrence.
func groupKeys(r model.Report, base string) ([]model.ColumnRef, error) {
	var keys []model.ColumnRef
	seen := make(map[string]bool)
	add := func(ref model.ColumnRef) {
		ref = qualify(ref, base)
		if !seen[ref.String()] {
			seen[ref.String()] = true
			keys = append(keys, ref)
		}
	}
	for _, g := range r.Group {
		ref, err := model.ParseColumnRef(g)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidReference, Report: r.Name, Message: err.Error(), Cause: err}
		}
		add(ref)
	}
	for _, item := range r.Show {
		if v, ok := item.(model.ShowColumn); ok {
			add(v.Column)
		}
	}
	return keys, nil
}

// resolveCalendar picks the calendar column for time-intelligence: the
// explicit use_date when given, else the first date or timestamp column on
// the base entity, else a MISSING_CALENDAR_DIMENSION failure.
func resolveCalendar(g *graph.Graph, r model.Report, base string) (model.ColumnRef, error) {
	if len(r.UseDate) > 0 {
		ref, err := model.ParseColumnRef(r.UseDate[0])
		if err != nil {
			return model.ColumnRef{}, &Error{Code: ErrCodeInvalidReference, Report: r.Name, Message: err.Error(), Cause: err}
		}
		return qualify(ref, base), nil
	}
	if col, ok := g.FirstTemporalColumn(base); ok {
		return model.ColumnRef{Entity: col.Entity, Column: col.Name}, nil
	}
	return model.ColumnRef{}, &Error{Code: ErrCodeMissingCalendar, Report: r.Name, Entity: base}
}

// qualify fills an empty entity qualifier with the base entity.
func qualify(ref model.ColumnRef, base string) model.ColumnRef {
	if ref.Entity == "" {
		ref.Entity = base
	}
	return ref
}

// qualifyExpr fills every empty entity qualifier in a report expression
// with the base entity. Binding happens here so that an unqualified column
// always means the report's base entity, whatever from-order the physical
// optimizer later picks.
func qualifyExpr(e model.Expr, base string) model.Expr {
	switch v := e.(type) {
	case model.ColRef:
		return model.ColRef{Ref: qualify(v.Ref, base)}
	case model.FuncCall:
		args := make([]model.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = qualifyExpr(a, base)
		}
		return model.FuncCall{Name: v.Name, Args: args}
	case model.Binary:
		return model.Binary{Op: v.Op, Left: qualifyExpr(v.Left, base), Right: qualifyExpr(v.Right, base)}
	case model.Unary:
		return model.Unary{Op: v.Op, Operand: qualifyExpr(v.Operand, base)}
	}
	return e
}

// attachReport stamps the report name onto logical errors that were built
// without it.
func attachReport(err error, report string) error {
	var lerr *Error
	if errors.As(err, &lerr) && lerr.Report == "" {
		lerr.Report = report
	}
	return err
}
