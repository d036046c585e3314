package physical

import (
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// maxExhaustiveTables is the table count up to which every join order is
// enumerated. Above it the greedy extension takes over.
const maxExhaustiveTables = 3

// joinOrders returns the join orders to generate candidates for. Up to
// maxExhaustiveTables every connected permutation is returned; above it a
// single greedy order is built by repeatedly extending with the reachable
// table of smallest estimated intermediate row count, breaking ties by
// from-list position.
func joinOrders(g *graph.Graph, tables []string, opts Options) ([][]string, error) {
	if len(tables) <= 1 {
		return [][]string{tables}, nil
	}

	if len(tables) <= maxExhaustiveTables {
		var orders [][]string
		for _, perm := range permutations(tables) {
			if orderConnected(g, perm) {
				orders = append(orders, perm)
			}
		}
		if len(orders) == 0 {
			return nil, &Error{Code: ErrCodeNoValidJoinOrder, Entity: tables[1]}
		}
		return orders, nil
	}

	order, err := greedyOrder(g, tables, opts)
	if err != nil {
		return nil, err
	}
	return [][]string{order}, nil
}

// permutations enumerates every ordering of tables. Only called for small
// lists.
func permutations(tables []string) [][]string {
	if len(tables) <= 1 {
		return [][]string{append([]string(nil), tables...)}
	}
	var out [][]string
	for i := range tables {
		rest := make([]string, 0, len(tables)-1)
		rest = append(rest, tables[:i]...)
		rest = append(rest, tables[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]string{tables[i]}, tail...))
		}
	}
	return out
}

// orderConnected reports whether each table in the order is reachable from
// the previous one through existing relationships.
func orderConnected(g *graph.Graph, order []string) bool {
	joined := map[string]bool{order[0]: true}
	rightmost := order[0]
	for _, next := range order[1:] {
		if joined[next] {
			rightmost = next
			continue
		}
		path, err := g.FindPath(rightmost, next)
		if err != nil {
			return false
		}
		for _, step := range path {
			joined[step.To] = true
		}
		rightmost = next
	}
	return true
}

// greedyOrder builds one order for large table lists: start from the first
// table and repeatedly append the reachable table whose join path yields
// the smallest estimated intermediate row count.
func greedyOrder(g *graph.Graph, tables []string, opts Options) ([]string, error) {
	order := []string{tables[0]}
	joined := map[string]bool{tables[0]: true}
	rightmost := tables[0]
	rows := scanRows(g, tables[0], opts)

	remaining := append([]string(nil), tables[1:]...)
	for len(remaining) > 0 {
		bestIdx := -1
		var bestRows float64
		var bestPath []graph.PathStep

		for i, cand := range remaining {
			path, err := g.FindPath(rightmost, cand)
			if err != nil {
				continue
			}
			est := rows
			for _, step := range path {
				if joined[step.To] {
					continue
				}
				est = joinRows(est, scanRows(g, step.To, opts), step.Cardinality)
			}
			// Strict less-than keeps the earliest from-list candidate on
			// ties.
			if bestIdx == -1 || est < bestRows {
				bestIdx, bestRows, bestPath = i, est, path
			}
		}
		if bestIdx == -1 {
			return nil, &Error{Code: ErrCodeNoValidJoinOrder, Entity: remaining[0]}
		}

		next := remaining[bestIdx]
		for _, step := range bestPath {
			joined[step.To] = true
		}
		order = append(order, next)
		rightmost = next
		rows = bestRows
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return order, nil
}

// scanRows is the estimated row count of an entity, falling back to the
// configured default when the graph has no statistics.
func scanRows(g *graph.Graph, entity string, opts Options) float64 {
	if n, ok := g.RowCount(entity); ok && n > 0 {
		return float64(n)
	}
	return float64(opts.defaultScanRows())
}

// joinRows estimates the output row count of one join hop.
func joinRows(left, right float64, card model.JoinCardinality) float64 {
	switch card {
	case model.OneToOne:
		return max(left, right)
	case model.ManyToOne:
		return left
	case model.OneToMany:
		return right
	default: // N:M
		return left * right / 100
	}
}
