// Package logical converts a validated report into the logical operator
// tree: the first of the planner's three phases.
//
// The tree is built by sequential, conditional wrapping of an accumulator
// plan: scan/join (from the join builder) → filter → aggregate →
// time-measure wrappers → inline-measure wrappers → project → sort → limit.
// Every wrapper is a pass-through when its trigger is absent from the
// report, so a column-only report never grows an aggregate node and a
// report without sort keys never grows a sort node.
//
// Node is a sealed interface: the physical planner and the emitter switch
// over the node shapes exhaustively.
//
// The tree is built once, never mutated, and owns its children directly;
// it is acyclic by construction.
package logical
