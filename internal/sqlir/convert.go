package sqlir

import (
	"fmt"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// AliasContext maps entity names to the table aliases assigned during join
// building, plus the base entity used to qualify bare column references.
type AliasContext struct {
	Base    string
	Aliases map[string]string // entity name -> alias
}

// NewAliasContext builds a context where each entity is its own alias,
// which is how the join builder assigns aliases.
func NewAliasContext(base string, entities []string) AliasContext {
	aliases := make(map[string]string, len(entities))
	for _, e := range entities {
		aliases[e] = e
	}
	return AliasContext{Base: base, Aliases: aliases}
}

// Alias resolves an entity to its alias. Unknown entities resolve to
// themselves so that converted SQL stays readable even on a defect.
func (c AliasContext) Alias(entity string) string {
	if a, ok := c.Aliases[entity]; ok {
		return a
	}
	return entity
}

// Convert translates a model-level expression into the SQL-emission tree.
// Bare column references are qualified by the base entity. Atom references
// are a converter error: the measure expander resolves them before any
// expression reaches conversion.
func Convert(e model.Expr, ctx AliasContext) (Expr, error) {
	switch v := e.(type) {
	case model.AtomRef:
		return nil, fmt.Errorf("unresolved atom @%s: measure expansion must run before SQL conversion", v.Name)
	case model.ColRef:
		entity := v.Ref.Entity
		if entity == "" {
			entity = ctx.Base
		}
		return Column{Table: ctx.Alias(entity), Name: v.Ref.Column}, nil
	case model.NumberLit:
		return Number{Text: v.Text}, nil
	case model.StringLit:
		return String{Value: v.Value}, nil
	case model.FuncCall:
		out := Func{Name: v.Name}
		if len(v.Args) == 0 && v.Name == "COUNT" {
			out.Args = []Expr{Star{}}
			return out, nil
		}
		for _, a := range v.Args {
			conv, err := Convert(a, ctx)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, conv)
		}
		return out, nil
	case model.Binary:
		left, err := Convert(v.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := Convert(v.Right, ctx)
		if err != nil {
			return nil, err
		}
		return Binary{Op: binaryOpSQL(v.Op), Left: left, Right: right}, nil
	case model.Unary:
		operand, err := Convert(v.Operand, ctx)
		if err != nil {
			return nil, err
		}
		op := "-"
		if v.Op == model.OpNot {
			op = "NOT"
		}
		return Unary{Op: op, Operand: operand}, nil
	default:
		return nil, fmt.Errorf("unsupported model expression %T", e)
	}
}

func binaryOpSQL(op model.BinaryOp) string {
	if op == model.OpNeq {
		return "<>"
	}
	return string(op)
}
