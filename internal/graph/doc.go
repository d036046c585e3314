// Package graph holds the precomputed dependency graph of the semantic
// model and the query operations the planner consumes.
//
// ARCHITECTURE:
//
// Build-then-freeze:
// A Builder accumulates entities, columns, measures and relationship edges,
// and Build() produces an immutable *Graph. Nothing mutates a Graph after
// Build returns, so concurrent planning calls may share one instance with
// no locking. A host refreshing the model builds a fresh Graph and hands it
// to new planning calls; in-flight calls keep their captured reference.
//
// Nodes and edges:
//   - Entity, Column, Measure nodes (column and measure each belong to
//     exactly one entity)
//   - REFERENCES (column → column): FK or statistical link with provenance
//     and confidence
//   - JOINS_TO (entity → entity): one per ordered entity pair, aggregating
//     every reference between the pair into a column-pair list plus a
//     cardinality tag
//   - DEPENDS_ON (measure → column): one per atom reference in the
//     measure's stored expression, derived at build time
//
// Query operations:
//   - FindPath: BFS shortest join path over JOINS_TO edges
//   - ValidateSafePath: rejects paths that fan out rows before aggregation
//   - InferGrain: the entity carrying the result grain
//   - ExpandMeasure: resolves a measure's stored expression, rewriting
//     atom placeholders into qualified column references (the only place
//     atom syntax is interpreted)
//
// All lookups normalize identifiers to NFC and lower case, so model files
// authored with differing Unicode forms or case still resolve.
package graph
