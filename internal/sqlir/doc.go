// Package sqlir provides the SQL-emission intermediate representation: a
// small expression tree, a SELECT-statement assembly type, and the closed
// set of target dialects.
//
// sqlir is the abstraction boundary between the planner and SQL surface
// syntax. The planner builds Select values from physical plan nodes; only
// this package knows how a dialect quotes identifiers, writes string
// literals, extracts date parts or shifts dates.
//
// Expr and its implementations form a sealed interface using the marker
// method pattern: only types in this package implement Expr, so rendering
// can switch over them exhaustively and adding an expression shape is a
// closed, reviewable change. The same holds for the Dialect enumeration -
// dialects are a closed set consumed by formatting functions, not an open
// strategy interface, because the set is small and changes rarely.
//
// The converter in this package translates the model-level expression tree
// (package model) into this tree given an alias context. The two ASTs stay
// distinct on purpose: the model layer never learns SQL surface syntax.
package sqlir
