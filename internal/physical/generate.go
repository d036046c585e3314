package physical

import (
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

// Options controls candidate generation.
type Options struct {
	// Dialect is the emission target. It gates the window-function
	// strategy for time measures.
	Dialect sqlir.Dialect

	// EnableSelfJoinFallback generates self-join candidates for time
	// measures. Required for dialects without window functions.
	EnableSelfJoinFallback bool

	// DefaultScanRows is the row estimate for entities without statistics.
	// Zero means 1,000,000.
	DefaultScanRows int64
}

func (o Options) defaultScanRows() int64 {
	if o.DefaultScanRows > 0 {
		return o.DefaultScanRows
	}
	return 1_000_000
}

// Generate produces the physical candidate trees for a logical plan. Every
// candidate is a complete tree with all strategy choices resolved except
// the hash-join build side, which the cost estimator decides from row
// estimates.
func Generate(g *graph.Graph, plan logical.Node, opts Options) ([]Node, error) {
	return generate(g, plan, opts)
}

func generate(g *graph.Graph, n logical.Node, opts Options) ([]Node, error) {
	switch v := n.(type) {
	case *logical.Scan:
		return scanCandidates(g, v.Entity, ""), nil

	case *logical.Join:
		return joinSegmentCandidates(g, v, opts)

	case *logical.Filter:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(children))
		for i, c := range children {
			out[i] = &Filter{Input: c, Predicates: v.Predicates}
		}
		return out, nil

	case *logical.Aggregate:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, 0, len(children)+1)
		for _, c := range children {
			out = append(out, &Aggregate{Input: c, GroupBy: v.GroupBy, Measures: v.Measures, Mode: AggSingle})
		}
		if pre, ok := preAggregateCandidate(g, v); ok {
			out = append(out, pre)
		}
		return out, nil

	case *logical.TimeMeasure:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		strategies := timeStrategies(opts)
		if len(strategies) == 0 {
			return nil, &Error{
				Code:    ErrCodeNoValidStrategy,
				Dialect: string(opts.Dialect),
				Measure: v.Alias,
				Message: "dialect has no window functions and the self-join fallback is disabled",
			}
		}
		var out []Node
		for _, c := range children {
			for _, s := range strategies {
				out = append(out, &TimeMeasure{
					Input:    c,
					Measure:  v.Measure,
					Modifier: v.Modifier,
					Calendar: v.Calendar,
					Alias:    v.Alias,
					Strategy: s,
				})
			}
		}
		return out, nil

	case *logical.InlineMeasure:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(children))
		for i, c := range children {
			out[i] = &InlineMeasure{Input: c, Name: v.Name, Expr: v.Expr}
		}
		return out, nil

	case *logical.Project:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(children))
		for i, c := range children {
			out[i] = &Project{Input: c, Items: v.Items}
		}
		return out, nil

	case *logical.Sort:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(children))
		for i, c := range children {
			out[i] = &Sort{Input: c, Keys: v.Keys}
		}
		return out, nil

	case *logical.Limit:
		children, err := generate(g, v.Input, opts)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(children))
		for i, c := range children {
			out[i] = &Limit{Input: c, Count: v.Count}
		}
		return out, nil
	}
	return nil, &Error{Code: ErrCodeNoValidStrategy, Message: "unhandled logical node"}
}

// timeStrategies lists the available time-measure strategies, preferred
// first.
func timeStrategies(opts Options) []TimeStrategy {
	var out []TimeStrategy
	if opts.Dialect.SupportsWindowFunctions() {
		out = append(out, TimeWindow)
	}
	if opts.EnableSelfJoinFallback {
		out = append(out, TimeSelfJoin)
	}
	return out
}

// scanCandidates lists the access paths for one entity. An index scan is
// generated only when the entity is entered through a join key of high
// cardinality.
func scanCandidates(g *graph.Graph, entity, entryKey string) []Node {
	out := []Node{&Scan{Entity: entity, Strategy: ScanFull}}
	if entryKey != "" && g.ColumnCardinality(entity, entryKey) == model.CardinalityHigh {
		out = append(out, &Scan{Entity: entity, Strategy: ScanIndex, IndexKey: entryKey})
	}
	return out
}

// joinSegmentCandidates regenerates the whole scan/join segment: one set of
// trees per viable join order, crossed with the join algorithms and scan
// access paths of every hop.
func joinSegmentCandidates(g *graph.Graph, seg *logical.Join, opts Options) ([]Node, error) {
	tables := logical.Tables(seg)
	orders, err := joinOrders(g, tables, opts)
	if err != nil {
		return nil, err
	}

	var out []Node
	for _, order := range orders {
		trees, err := buildSegment(g, order)
		if err != nil {
			return nil, err
		}
		out = append(out, trees...)
	}
	return out, nil
}

// buildSegment builds every candidate tree for one join order. The order
// has already been validated as connected.
func buildSegment(g *graph.Graph, order []string) ([]Node, error) {
	cands := scanCandidates(g, order[0], "")
	joined := map[string]bool{order[0]: true}
	rightmost := order[0]

	for _, next := range order[1:] {
		if joined[next] {
			rightmost = next
			continue
		}
		path, err := g.FindPath(rightmost, next)
		if err != nil {
			return nil, &Error{Code: ErrCodeNoValidJoinOrder, Entity: next, Cause: err}
		}
		for _, step := range path {
			if joined[step.To] {
				continue
			}
			entryKey := ""
			if len(step.Pairs) > 0 {
				entryKey = step.Pairs[0].ToColumn
			}
			rights := scanCandidates(g, step.To, entryKey)

			var grown []Node
			for _, left := range cands {
				for _, right := range rights {
					for _, algo := range []JoinAlgo{JoinHash, JoinNestedLoop} {
						grown = append(grown, &Join{
							Left:        left,
							Right:       right,
							From:        step.From,
							To:          step.To,
							Pairs:       step.Pairs,
							Cardinality: step.Cardinality,
							Algo:        algo,
						})
					}
				}
			}
			cands = grown
			joined[step.To] = true
		}
		rightmost = next
	}
	return cands, nil
}

// preAggregateCandidate builds the pre-aggregate-then-join alternative:
// aggregate the fact side below the join, grouped by its join keys, then
// join the compacted result to the dimensions and re-aggregate. Returns
// false when the plan shape does not decompose or any join out of the base
// could fan out.
func preAggregateCandidate(g *graph.Graph, agg *logical.Aggregate) (Node, bool) {
	hops, preds, base, ok := flattenAggInput(agg.Input)
	if !ok || len(hops) == 0 {
		return nil, false
	}

	for _, m := range agg.Measures {
		if m.Entity != base || !decomposable(m.Expr) || !columnsOn(m.Expr, base) {
			return nil, false
		}
	}
	for _, p := range preds {
		if !columnsOn(p, base) {
			return nil, false
		}
	}

	// the compacted base must carry the result grain, and every path out of
	// it must be fan-out free, or the final re-aggregate double counts
	entities := make([]string, 0, len(hops)+1)
	entities = append(entities, base)
	for _, h := range hops {
		entities = append(entities, h.To)
	}
	if grain, err := g.InferGrain(entities); err != nil || grain != base {
		return nil, false
	}
	for _, h := range hops {
		if _, err := g.ValidateSafePath(base, h.To); err != nil {
			return nil, false
		}
	}

	// Partial keys: the join columns leaving the fact, then the fact's own
	// group keys.
	var partialKeys []model.ColumnRef
	seen := map[string]bool{}
	for _, h := range hops {
		if h.From != base {
			continue
		}
		for _, pair := range h.Pairs {
			ref := model.ColumnRef{Entity: base, Column: pair.FromColumn}
			if !seen[ref.String()] {
				seen[ref.String()] = true
				partialKeys = append(partialKeys, ref)
			}
		}
	}
	for _, k := range agg.GroupBy {
		if k.Entity == base && !seen[k.String()] {
			seen[k.String()] = true
			partialKeys = append(partialKeys, k)
		}
	}

	var factSide Node = &Scan{Entity: base, Strategy: ScanFull}
	if len(preds) > 0 {
		factSide = &Filter{Input: factSide, Predicates: preds}
	}
	var node Node = &Aggregate{Input: factSide, GroupBy: partialKeys, Measures: agg.Measures, Mode: AggPartial}

	for _, h := range hops {
		node = &Join{
			Left:        node,
			Right:       &Scan{Entity: h.To, Strategy: ScanFull},
			From:        h.From,
			To:          h.To,
			Pairs:       h.Pairs,
			Cardinality: h.Cardinality,
			Algo:        JoinHash,
		}
	}
	return &Aggregate{Input: node, GroupBy: agg.GroupBy, Measures: agg.Measures, Mode: AggFinal}, true
}

type hop struct {
	From        string
	To          string
	Pairs       []graph.ColumnPair
	Cardinality model.JoinCardinality
}

// flattenAggInput splits an aggregate input of shape [Filter] over a
// left-deep join chain into its hops, predicates and base entity.
func flattenAggInput(n logical.Node) (hops []hop, preds []model.Expr, base string, ok bool) {
	if f, isFilter := n.(*logical.Filter); isFilter {
		preds = f.Predicates
		n = f.Input
	}
	for {
		switch v := n.(type) {
		case *logical.Join:
			hops = append([]hop{{From: v.From, To: v.To, Pairs: v.Pairs, Cardinality: v.Cardinality}}, hops...)
			n = v.Left
		case *logical.Scan:
			return hops, preds, v.Entity, true
		default:
			return nil, nil, "", false
		}
	}
}

// decomposable reports whether a measure expression can be split into a
// partial and a final aggregation: a single SUM/COUNT/MIN/MAX at the root.
func decomposable(e model.Expr) bool {
	f, ok := e.(model.FuncCall)
	if !ok {
		return false
	}
	switch f.Name {
	case "SUM", "COUNT", "MIN", "MAX":
		return true
	}
	return false
}

// columnsOn reports whether every column an expression touches lives on
// the given entity. Unqualified references count as the base entity.
func columnsOn(e model.Expr, entity string) bool {
	for _, ref := range model.Columns(e) {
		if ref.Entity != "" && ref.Entity != entity {
			return false
		}
	}
	return true
}
