package graph

import (
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// ExpandedMeasure is a measure whose stored expression has been parsed and
// fully resolved: every atom placeholder rewritten to a column reference
// qualified by the owning entity. Expansion happens once per requested
// measure; every physical candidate and the emitter reuse the same value
// and never re-parse the stored text.
type ExpandedMeasure struct {
	Name   string
	Entity string
	Expr   model.Expr
}

// ExpandMeasure looks up a measure, parses its stored expression and
// rewrites every atom reference into a column reference qualified by the
// owning entity. This is the single place atom-placeholder syntax is
// interpreted.
//
// Expansion is idempotent: an expression already free of atom references
// comes back unchanged.
//
// Fails with MEASURE_NOT_FOUND when the measure is absent and
// INVALID_EXPRESSION (preserving the parser's message) when the stored
// text does not parse.
func (g *Graph) ExpandMeasure(entity, name string) (ExpandedMeasure, error) {
	if _, err := g.Entity(entity); err != nil {
		return ExpandedMeasure{}, err
	}
	m, ok := g.Measure(entity, name)
	if !ok {
		return ExpandedMeasure{}, &Error{Code: ErrCodeMeasureNotFound, Entity: entity, Measure: name}
	}
	expr, err := model.ParseExpr(m.Expression)
	if err != nil {
		return ExpandedMeasure{}, &Error{Code: ErrCodeInvalidExpression, Entity: entity, Measure: name, Cause: err}
	}
	return ExpandedMeasure{
		Name:   m.Name,
		Entity: m.Entity,
		Expr:   resolveAtoms(expr, m.Entity),
	}, nil
}

// resolveAtoms rewrites atom references to entity-qualified column
// references, leaving every other node untouched.
func resolveAtoms(e model.Expr, entity string) model.Expr {
	switch v := e.(type) {
	case model.AtomRef:
		return model.ColRef{Ref: model.ColumnRef{Entity: entity, Column: v.Name}}
	case model.FuncCall:
		args := make([]model.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = resolveAtoms(a, entity)
		}
		return model.FuncCall{Name: v.Name, Args: args}
	case model.Binary:
		return model.Binary{
			Op:    v.Op,
			Left:  resolveAtoms(v.Left, entity),
			Right: resolveAtoms(v.Right, entity),
		}
	case model.Unary:
		return model.Unary{Op: v.Op, Operand: resolveAtoms(v.Operand, entity)}
	default:
		return e
	}
}
