package model

import "strings"

// Expr is a node in the model-level expression tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the converter and the measure expander.
//
// Expression types:
//   - AtomRef: @name placeholder for a column on the owning entity
//   - ColRef: column reference, optionally entity-qualified
//   - NumberLit / StringLit: literals
//   - FuncCall: function application, e.g. SUM(...)
//   - Binary: binary operator (arithmetic, comparison, AND/OR)
//   - Unary: unary minus / NOT
type Expr interface {
	exprNode()
}

// AtomRef is an @name placeholder inside a measure's stored expression.
// Atoms are resolved to entity-qualified column references exactly once,
// by the graph's measure expansion; no other component interprets them.
type AtomRef struct {
	Name string
}

func (AtomRef) exprNode() {}

// ColRef references a column inside an expression.
type ColRef struct {
	Ref ColumnRef
}

func (ColRef) exprNode() {}

// NumberLit is a numeric literal. Text preserves the lexical form so that
// emission reproduces the author's literal exactly.
type NumberLit struct {
	Text string
}

func (NumberLit) exprNode() {}

// StringLit is a string literal.
type StringLit struct {
	Value string
}

func (StringLit) exprNode() {}

// FuncCall is a function application. Name is stored upper-cased.
type FuncCall struct {
	Name string
	Args []Expr
}

func (FuncCall) exprNode() {}

// BinaryOp enumerates the binary operators the model grammar supports.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpEq  BinaryOp = "="
	OpNeq BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLte BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGte BinaryOp = ">="
	OpAnd BinaryOp = "AND"
	OpOr  BinaryOp = "OR"
)

// IsComparison reports whether the operator is a comparison operator.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Binary is a binary operator application.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// UnaryOp enumerates the unary operators.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "NOT"
)

// Unary is a unary operator application.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (Unary) exprNode() {}

// aggregateFuncs are the aggregate functions the model recognizes. The
// emitter uses this to decide how a measure expression nests under a
// window function.
var aggregateFuncs = map[string]bool{
	"SUM":   true,
	"COUNT": true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// IsAggregateFunc reports whether name is a recognized aggregate function.
func IsAggregateFunc(name string) bool {
	return aggregateFuncs[strings.ToUpper(name)]
}

// HasAtoms reports whether the expression contains any atom references.
func HasAtoms(e Expr) bool {
	switch v := e.(type) {
	case AtomRef:
		return true
	case FuncCall:
		for _, a := range v.Args {
			if HasAtoms(a) {
				return true
			}
		}
	case Binary:
		return HasAtoms(v.Left) || HasAtoms(v.Right)
	case Unary:
		return HasAtoms(v.Operand)
	}
	return false
}

// Atoms returns the atom names referenced by the expression, in first-use
// order, de-duplicated.
func Atoms(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case AtomRef:
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		case FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
		case Binary:
			walk(v.Left)
			walk(v.Right)
		case Unary:
			walk(v.Operand)
		}
	}
	walk(e)
	return out
}

// Columns returns the column references in the expression, in first-use
// order, de-duplicated by qualified name.
func Columns(e Expr) []ColumnRef {
	var out []ColumnRef
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case ColRef:
			key := v.Ref.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, v.Ref)
			}
		case FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
		case Binary:
			walk(v.Left)
			walk(v.Right)
		case Unary:
			walk(v.Operand)
		}
	}
	walk(e)
	return out
}
