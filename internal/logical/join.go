package logical

import (
	"errors"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
)

// BuildJoinTree resolves a list of entity names into a left-deep join tree.
//
// The first entity becomes the base scan. Each subsequent entity is reached
// by the shortest join path from the current rightmost entity; a path
// spanning multiple hops is expanded into one Join per hop, never a single
// multi-hop node. Hops landing on an entity already in the tree are
// skipped, so a path routed through an already-joined dimension does not
// join it twice.
//
// Fails with NO_JOIN_PATH, naming both entities, when a requested pair is
// unreachable.
func BuildJoinTree(g *graph.Graph, tables []string) (Node, error) {
	if len(tables) == 0 {
		return nil, &Error{Code: ErrCodeEmptyFrom}
	}

	base, err := g.Entity(tables[0])
	if err != nil {
		return nil, wrapGraphErr(err, "")
	}

	var plan Node = &Scan{Entity: base.Name}
	joined := map[string]bool{base.Name: true}
	rightmost := base.Name

	for _, next := range tables[1:] {
		ent, err := g.Entity(next)
		if err != nil {
			return nil, wrapGraphErr(err, "")
		}
		if joined[ent.Name] {
			continue
		}

		path, err := g.FindPath(rightmost, ent.Name)
		if err != nil {
			var gerr *graph.Error
			if errors.As(err, &gerr) && gerr.Code == graph.ErrCodeNoPathFound {
				return nil, &Error{Code: ErrCodeNoJoinPath, From: rightmost, To: ent.Name, Cause: err}
			}
			return nil, wrapGraphErr(err, "")
		}

		for _, step := range path {
			if joined[step.To] {
				continue
			}
			plan = &Join{
				Left:        plan,
				Right:       &Scan{Entity: step.To},
				From:        step.From,
				To:          step.To,
				Pairs:       step.Pairs,
				Cardinality: step.Cardinality,
			}
			joined[step.To] = true
		}
		rightmost = ent.Name
	}

	return plan, nil
}

// wrapGraphErr converts graph lookup failures into logical-plan errors so
// callers see a single error namespace with the report context attached.
func wrapGraphErr(err error, report string) error {
	var gerr *graph.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case graph.ErrCodeEntityNotFound:
			return &Error{Code: ErrCodeUnknownEntity, Report: report, Entity: gerr.Entity, Cause: err}
		case graph.ErrCodeMeasureNotFound:
			return &Error{Code: ErrCodeUnknownMeasure, Report: report, Entity: gerr.Entity, Measure: gerr.Measure, Cause: err}
		case graph.ErrCodeNoPathFound:
			return &Error{Code: ErrCodeNoJoinPath, Report: report, From: gerr.From, To: gerr.To, Cause: err}
		}
	}
	return err
}
