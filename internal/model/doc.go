// Package model provides the semantic-model types shared by every other
// package: entities, columns, measures, reports, and the model-level
// expression tree.
//
// This package contains type definitions and the expression text parser
// only. All other internal packages import model; model imports nothing
// internal. This keeps it the foundational layer with no circular
// dependencies.
//
// The expression tree here is the model-level AST. It is deliberately
// distinct from the SQL-emission AST (package sqlir): measures and filters
// are stored and validated in model terms, and a single explicit converter
// translates them to SQL terms at emission time. Atom references (@name)
// exist only in this AST; they are resolved to qualified column references
// by graph.ExpandMeasure before any SQL is produced.
package model
