package cost

import (
	"fmt"
	"math"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
)

// CostEstimate is the bottom-up cost of one candidate node, inclusive of
// its subtree.
type CostEstimate struct {
	Rows   float64
	CPU    float64
	IO     float64
	Memory float64
	Total  float64
}

// Estimate computes the cost of one candidate tree. It also resolves the
// hash-join build sides: after estimating both inputs, the smaller side
// becomes the build side.
func Estimate(g *graph.Graph, n physical.Node, cfg Config) (CostEstimate, error) {
	e, err := estimate(g, n, cfg)
	if err != nil {
		return CostEstimate{}, err
	}
	e.Total = cfg.total(e)
	return e, nil
}

func estimate(g *graph.Graph, n physical.Node, cfg Config) (CostEstimate, error) {
	switch v := n.(type) {
	case *physical.Scan:
		rows := cfg.DefaultScanRows
		if count, ok := g.RowCount(v.Entity); ok && count > 0 {
			rows = float64(count)
		}
		ioFactor := 1.0
		if v.Strategy == physical.ScanIndex {
			ioFactor = cfg.IndexScanIOFactor
		}
		return CostEstimate{Rows: rows, IO: rows * ioFactor}, nil

	case *physical.Filter:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		sel := Selectivity(g, v.Predicates)
		return CostEstimate{
			Rows:   in.Rows * sel,
			CPU:    in.CPU + in.Rows,
			IO:     in.IO,
			Memory: in.Memory,
		}, nil

	case *physical.Join:
		left, err := estimate(g, v.Left, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		right, err := estimate(g, v.Right, cfg)
		if err != nil {
			return CostEstimate{}, err
		}

		var rows float64
		switch v.Cardinality {
		case model.OneToOne:
			rows = math.Max(left.Rows, right.Rows)
		case model.ManyToOne:
			rows = left.Rows
		case model.OneToMany:
			rows = right.Rows
		default:
			rows = left.Rows * right.Rows / 100
		}

		out := CostEstimate{
			Rows:   rows,
			CPU:    left.CPU + right.CPU,
			IO:     left.IO + right.IO,
			Memory: left.Memory + right.Memory,
		}
		switch v.Algo {
		case physical.JoinHash:
			out.CPU += left.Rows + right.Rows
			// Build on the smaller input.
			v.BuildLeft = left.Rows <= right.Rows
			out.Memory += math.Min(left.Rows, right.Rows)
		case physical.JoinNestedLoop:
			out.CPU += left.Rows * right.Rows
		default:
			return CostEstimate{}, &Error{Code: ErrCodeEstimation, Message: fmt.Sprintf("unknown join algorithm %q", v.Algo)}
		}
		return out, nil

	case *physical.Aggregate:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		rows := in.Rows * groupFraction(g, v.GroupBy)
		if rows < 1 {
			rows = 1
		}
		return CostEstimate{
			Rows:   rows,
			CPU:    in.CPU + in.Rows,
			IO:     in.IO,
			Memory: in.Memory + rows,
		}, nil

	case *physical.TimeMeasure:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		out := CostEstimate{Rows: in.Rows, CPU: in.CPU, IO: in.IO, Memory: in.Memory}
		switch v.Strategy {
		case physical.TimeWindow:
			out.CPU += in.Rows*log2(in.Rows) + in.Rows
			out.Memory += in.Rows
		case physical.TimeSelfJoin:
			out.CPU += in.Rows * in.Rows
		default:
			return CostEstimate{}, &Error{Code: ErrCodeEstimation, Message: fmt.Sprintf("unknown time strategy %q", v.Strategy)}
		}
		return out, nil

	case *physical.InlineMeasure:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		in.CPU += in.Rows
		return in, nil

	case *physical.Project:
		return estimate(g, v.Input, cfg)

	case *physical.Sort:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		in.CPU += in.Rows * log2(in.Rows)
		in.Memory += in.Rows
		return in, nil

	case *physical.Limit:
		in, err := estimate(g, v.Input, cfg)
		if err != nil {
			return CostEstimate{}, err
		}
		if c := float64(v.Count); c > 0 && c < in.Rows {
			in.Rows = c
		}
		return in, nil
	}
	return CostEstimate{}, &Error{Code: ErrCodeEstimation, Message: fmt.Sprintf("unknown node %T", n)}
}

// Selectivity estimates the fraction of rows surviving AND-combined
// predicates, clamped to [0.01, 1.0].
func Selectivity(g *graph.Graph, preds []model.Expr) float64 {
	sel := 1.0
	for _, p := range preds {
		sel *= predicateSelectivity(g, p)
	}
	return clamp(sel, 0.01, 1.0)
}

func predicateSelectivity(g *graph.Graph, e model.Expr) float64 {
	b, ok := e.(model.Binary)
	if !ok {
		return 0.5
	}
	switch b.Op {
	case model.OpAnd:
		return predicateSelectivity(g, b.Left) * predicateSelectivity(g, b.Right)
	case model.OpEq:
		switch columnCardinality(g, b.Left, b.Right) {
		case model.CardinalityHigh:
			return 0.001
		case model.CardinalityLow:
			return 0.1
		}
		return 0.5
	case model.OpLt, model.OpLte, model.OpGt, model.OpGte:
		return 0.33
	}
	return 0.5
}

// columnCardinality finds the cardinality hint of the column side of a
// comparison, whichever side that is.
func columnCardinality(g *graph.Graph, sides ...model.Expr) model.CardinalityHint {
	for _, s := range sides {
		ref, ok := s.(model.ColRef)
		if !ok {
			continue
		}
		if hint := g.ColumnCardinality(ref.Ref.Entity, ref.Ref.Column); hint != model.CardinalityUnknown {
			return hint
		}
	}
	return model.CardinalityUnknown
}

// groupFraction combines the per-key output fractions: high-cardinality
// keys keep 0.9 of the input, low-cardinality 0.1, unknown 0.5. Multiple
// keys combine as 1 − Π(1 − f). No keys collapse to a single row.
func groupFraction(g *graph.Graph, keys []model.ColumnRef) float64 {
	if len(keys) == 0 {
		return 0
	}
	miss := 1.0
	for _, k := range keys {
		var f float64
		switch g.ColumnCardinality(k.Entity, k.Column) {
		case model.CardinalityHigh:
			f = 0.9
		case model.CardinalityLow:
			f = 0.1
		default:
			f = 0.5
		}
		miss *= 1 - f
	}
	return 1 - miss
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func log2(n float64) float64 {
	if n < 2 {
		return 0
	}
	return math.Log2(n)
}
