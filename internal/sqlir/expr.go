package sqlir

import (
	"fmt"
	"strings"
)

// Expr is a node in the SQL-emission expression tree.
//
// This is a sealed interface - only types in this package implement it,
// so Render switches over the shapes exhaustively.
type Expr interface {
	sqlExpr()
}

// Column references a column through its table alias.
type Column struct {
	Table string // table alias; empty for an unqualified reference
	Name  string
}

func (Column) sqlExpr() {}

// Number is a numeric literal, emitted verbatim.
type Number struct {
	Text string
}

func (Number) sqlExpr() {}

// String is a string literal, quoted per dialect.
type String struct {
	Value string
}

func (String) sqlExpr() {}

// Func is a function application.
type Func struct {
	Name string
	Args []Expr
}

func (Func) sqlExpr() {}

// Star is the bare COUNT(*) argument.
type Star struct{}

func (Star) sqlExpr() {}

// Binary is a binary operator application. Operands are parenthesized when
// they are themselves binary, which keeps emission correct without
// tracking precedence.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (Binary) sqlExpr() {}

// Unary is a prefix operator application.
type Unary struct {
	Op      string
	Operand Expr
}

func (Unary) sqlExpr() {}

// DatePart names a component for extraction.
type DatePart string

const (
	PartYear    DatePart = "year"
	PartQuarter DatePart = "quarter"
	PartMonth   DatePart = "month"
	PartWeek    DatePart = "week"
)

// Extract pulls a date part out of a temporal operand. Rendering is
// dialect-specific.
type Extract struct {
	Part    DatePart
	Operand Expr
}

func (Extract) sqlExpr() {}

// DateSub shifts a temporal operand back by N units. Rendering is
// dialect-specific.
type DateSub struct {
	Operand Expr
	N       int
	Unit    DatePart
}

func (DateSub) sqlExpr() {}

// FrameBound is one end of a window frame.
type FrameBound struct {
	// Preceding is the row offset; negative means UNBOUNDED PRECEDING and
	// zero means CURRENT ROW.
	Preceding int
}

// Frame is a ROWS window frame.
type Frame struct {
	Start FrameBound
	End   FrameBound
}

// UnboundedToCurrent is the UNBOUNDED PRECEDING .. CURRENT ROW frame.
func UnboundedToCurrent() *Frame {
	return &Frame{Start: FrameBound{Preceding: -1}, End: FrameBound{Preceding: 0}}
}

// PrecedingToCurrent is the N PRECEDING .. CURRENT ROW frame.
func PrecedingToCurrent(n int) *Frame {
	return &Frame{Start: FrameBound{Preceding: n}, End: FrameBound{Preceding: 0}}
}

// Window is an OVER(...) expression: Func evaluated over a partition and
// ordering, optionally framed. LAG-style functions carry no frame.
type Window struct {
	Func        Expr
	PartitionBy []Expr
	OrderBy     []OrderItem
	Frame       *Frame
}

func (Window) sqlExpr() {}

// Subquery is a scalar subquery used by the self-join fallback for
// time-intelligence measures on dialects without window functions.
type Subquery struct {
	Query *Select
}

func (Subquery) sqlExpr() {}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// Render serializes an expression for the dialect.
func Render(e Expr, d Dialect) string {
	switch v := e.(type) {
	case Column:
		if v.Table == "" {
			return d.QuoteIdent(v.Name)
		}
		return d.QuoteIdent(v.Table) + "." + d.QuoteIdent(v.Name)
	case Number:
		return v.Text
	case String:
		return d.QuoteString(v.Value)
	case Star:
		return "*"
	case Func:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = Render(a, d)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case Binary:
		return renderOperand(v.Left, d) + " " + v.Op + " " + renderOperand(v.Right, d)
	case Unary:
		if v.Op == "NOT" {
			return "NOT " + renderOperand(v.Operand, d)
		}
		return v.Op + renderOperand(v.Operand, d)
	case Extract:
		return d.extract(v.Part, Render(v.Operand, d))
	case DateSub:
		return d.dateSub(Render(v.Operand, d), v.N, string(v.Unit))
	case Window:
		return renderWindow(v, d)
	case Subquery:
		return "(" + v.Query.SQL(d) + ")"
	default:
		// Unreachable: Expr is sealed.
		return fmt.Sprintf("<unknown expr %T>", e)
	}
}

// renderOperand parenthesizes compound operands.
func renderOperand(e Expr, d Dialect) string {
	switch e.(type) {
	case Binary:
		return "(" + Render(e, d) + ")"
	default:
		return Render(e, d)
	}
}

func renderWindow(w Window, d Dialect) string {
	var sb strings.Builder
	sb.WriteString(Render(w.Func, d))
	sb.WriteString(" OVER (")
	wrote := false
	if len(w.PartitionBy) > 0 {
		sb.WriteString("PARTITION BY ")
		for i, p := range w.PartitionBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Render(p, d))
		}
		wrote = true
	}
	if len(w.OrderBy) > 0 {
		if wrote {
			sb.WriteString(" ")
		}
		sb.WriteString("ORDER BY ")
		for i, o := range w.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Render(o.Expr, d))
			if o.Descending {
				sb.WriteString(" DESC")
			}
		}
		wrote = true
	}
	if w.Frame != nil {
		if wrote {
			sb.WriteString(" ")
		}
		sb.WriteString("ROWS BETWEEN ")
		sb.WriteString(renderBound(w.Frame.Start))
		sb.WriteString(" AND ")
		sb.WriteString(renderBound(w.Frame.End))
	}
	sb.WriteString(")")
	return sb.String()
}

func renderBound(b FrameBound) string {
	switch {
	case b.Preceding < 0:
		return "UNBOUNDED PRECEDING"
	case b.Preceding == 0:
		return "CURRENT ROW"
	default:
		return fmt.Sprintf("%d PRECEDING", b.Preceding)
	}
}

// AndAll combines predicates into a single AND conjunction. Returns nil for
// an empty input and the predicate itself for a single input.
func AndAll(preds []Expr) Expr {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	combined := preds[0]
	for _, p := range preds[1:] {
		combined = Binary{Op: "AND", Left: combined, Right: p}
	}
	return combined
}
