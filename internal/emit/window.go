package emit

import (
	"fmt"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

func (b *builder) buildTimeMeasure(v *physical.TimeMeasure) error {
	switch v.Strategy {
	case physical.TimeSelfJoin:
		return b.buildSelfJoinMeasure(v)
	default:
		return b.buildWindowMeasure(v)
	}
}

// buildWindowMeasure derives one window expression from the time modifier.
// The window function wraps the measure's aggregate, so the emitted SQL
// nests aggregates: SUM(SUM(amount)) OVER (...). The frame mapping is
// fixed: to-date accumulates from the period start, rolling keeps the
// trailing N rows, prior reads back with LAG and needs no frame.
func (b *builder) buildWindowMeasure(v *physical.TimeMeasure) error {
	agg, err := b.measureExpr(v.Measure)
	if err != nil {
		return err
	}
	cal := sqlir.Column{Table: b.ctx.Alias(v.Calendar.Entity), Name: v.Calendar.Column}
	dims := b.partitionDims(v.Calendar)
	order := []sqlir.OrderItem{{Expr: cal}}

	switch m := v.Modifier.(type) {
	case logical.ToDate:
		b.computed[v.Alias] = sqlir.Window{
			Func:        sqlir.Func{Name: outerAgg(v.Measure.Expr), Args: []sqlir.Expr{agg}},
			PartitionBy: append(dims, periodParts(m.Unit, cal)...),
			OrderBy:     order,
			Frame:       sqlir.UnboundedToCurrent(),
		}
		return nil

	case logical.Rolling:
		name := "SUM"
		if m.Agg == logical.RollAvg {
			name = "AVG"
		}
		b.computed[v.Alias] = sqlir.Window{
			Func:        sqlir.Func{Name: name, Args: []sqlir.Expr{agg}},
			PartitionBy: dims,
			OrderBy:     order,
			Frame:       sqlir.PrecedingToCurrent(m.Periods - 1),
		}
		return nil

	case logical.Prior:
		b.computed[v.Alias] = lagWindow(agg, m.Periods, dims, order)
		return nil

	case logical.Growth:
		lag := lagWindow(agg, m.Prior.Periods, dims, order)
		b.computed[v.Alias] = sqlir.Binary{
			Op:    "/",
			Left:  sqlir.Binary{Op: "-", Left: agg, Right: lag},
			Right: lag,
		}
		return nil

	case logical.Delta:
		lag := lagWindow(agg, m.Prior.Periods, dims, order)
		b.computed[v.Alias] = sqlir.Binary{Op: "-", Left: agg, Right: lag}
		return nil
	}
	return fmt.Errorf("emit: unhandled time modifier %T for %q", v.Modifier, v.Alias)
}

// measureExpr fetches the converted aggregate for a measure, converting the
// expanded expression directly when no aggregate stage registered it.
func (b *builder) measureExpr(m graph.ExpandedMeasure) (sqlir.Expr, error) {
	if e, ok := b.measures[m.Name]; ok {
		return e, nil
	}
	conv, err := sqlir.Convert(m.Expr, b.ctx)
	if err != nil {
		return nil, fmt.Errorf("emit: time measure %q: %w", m.Name, err)
	}
	return conv, nil
}

// partitionDims lists the group keys other than the calendar as partition
// expressions: each non-time dimension gets its own running total.
func (b *builder) partitionDims(calendar model.ColumnRef) []sqlir.Expr {
	var out []sqlir.Expr
	for _, k := range b.groupBy {
		if k == calendar {
			continue
		}
		out = append(out, sqlir.Column{Table: b.ctx.Alias(k.Entity), Name: k.Column})
	}
	return out
}

// periodParts maps a to-date unit to the calendar extractions that bound
// the accumulation: the year for ytd, year and quarter for qtd, year and
// month for mtd.
func periodParts(unit logical.PeriodUnit, cal sqlir.Expr) []sqlir.Expr {
	year := sqlir.Extract{Part: sqlir.PartYear, Operand: cal}
	switch unit {
	case logical.UnitQuarter:
		return []sqlir.Expr{year, sqlir.Extract{Part: sqlir.PartQuarter, Operand: cal}}
	case logical.UnitMonth:
		return []sqlir.Expr{year, sqlir.Extract{Part: sqlir.PartMonth, Operand: cal}}
	case logical.UnitWeek:
		return []sqlir.Expr{year, sqlir.Extract{Part: sqlir.PartWeek, Operand: cal}}
	default:
		return []sqlir.Expr{year}
	}
}

func lagWindow(agg sqlir.Expr, periods int, dims []sqlir.Expr, order []sqlir.OrderItem) sqlir.Window {
	return sqlir.Window{
		Func:        sqlir.Func{Name: "LAG", Args: []sqlir.Expr{agg, sqlir.Number{Text: fmt.Sprint(periods)}}},
		PartitionBy: dims,
		OrderBy:     order,
	}
}

// outerAgg picks the window aggregate that accumulates a measure: COUNT
// partials sum, SUM/MIN/MAX reapply themselves, anything else sums.
func outerAgg(e model.Expr) string {
	f, ok := e.(model.FuncCall)
	if !ok {
		return "SUM"
	}
	switch f.Name {
	case "MIN", "MAX":
		return f.Name
	}
	return "SUM"
}
