package graph

import (
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// PathStep is one hop of a join path. Pairs carries every column pair of
// the aggregated JOINS_TO edge for the hop; joining the hop AND-combines
// them all.
type PathStep struct {
	From        string
	To          string
	Cardinality model.JoinCardinality
	Pairs       []ColumnPair
}

type pathVisit struct {
	key  string
	via  *JoinEdge
	prev *pathVisit
}

// FindPath returns the first shortest join path from one entity to another,
// searching breadth-first over JOINS_TO edges only. Ties between equal-length
// paths are broken by edge-insertion order, so the result is deterministic
// for a given build sequence.
//
// A path from an entity to itself is empty. Fails with ENTITY_NOT_FOUND if
// either endpoint is absent and NO_PATH_FOUND if the target is unreachable.
// Runs in O(V+E).
func (g *Graph) FindPath(from, to string) ([]PathStep, error) {
	fromKey, toKey := canonKey(from), canonKey(to)
	if _, ok := g.entities[fromKey]; !ok {
		return nil, entityNotFound(from)
	}
	if _, ok := g.entities[toKey]; !ok {
		return nil, entityNotFound(to)
	}
	if fromKey == toKey {
		return []PathStep{}, nil
	}

	visited := map[string]bool{fromKey: true}
	queue := []*pathVisit{{key: fromKey}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range g.joins[cur.key] {
			nextKey := canonKey(edge.To)
			if visited[nextKey] {
				continue
			}
			next := &pathVisit{key: nextKey, via: edge, prev: cur}
			if nextKey == toKey {
				return assemblePath(next), nil
			}
			visited[nextKey] = true
			queue = append(queue, next)
		}
	}
	return nil, &Error{Code: ErrCodeNoPathFound, From: from, To: to}
}

// assemblePath walks parent pointers back to the origin and reverses.
func assemblePath(end *pathVisit) []PathStep {
	var rev []*JoinEdge
	for v := end; v != nil && v.via != nil; v = v.prev {
		rev = append(rev, v.via)
	}
	steps := make([]PathStep, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		e := rev[i]
		steps = append(steps, PathStep{
			From:        e.From,
			To:          e.To,
			Cardinality: e.Cardinality,
			Pairs:       e.Pairs,
		})
	}
	return steps
}

// ValidateSafePath finds the shortest path and then rejects it if any step
// traverses from the one side of a one-to-many relationship: joining such a
// step without pre-aggregation duplicates rows at the caller's grain
// (fan-out). Many-to-many steps are rejected for the same reason.
//
// Returns the path when it is safe, so callers needn't search twice.
func (g *Graph) ValidateSafePath(from, to string) ([]PathStep, error) {
	path, err := g.FindPath(from, to)
	if err != nil {
		return nil, err
	}
	for _, step := range path {
		switch step.Cardinality {
		case model.OneToMany:
			return nil, &Error{
				Code: ErrCodeUnsafeJoinPath,
				From: from, To: to,
				Message: "step " + step.From + " -> " + step.To + " traverses the one side of a one-to-many relationship; rows would fan out before aggregation",
			}
		case model.ManyToMany:
			return nil, &Error{
				Code: ErrCodeUnsafeJoinPath,
				From: from, To: to,
				Message: "step " + step.From + " -> " + step.To + " is many-to-many; rows would fan out before aggregation",
			}
		}
	}
	return path, nil
}
