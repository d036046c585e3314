package logical

import (
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// Node is a node of the logical operator tree.
//
// This is a sealed interface - only types in this package implement it.
// The physical planner generates strategy candidates per shape and the
// type switches are exhaustive.
type Node interface {
	logicalNode()
}

// Scan reads one entity.
type Scan struct {
	Entity string
}

func (*Scan) logicalNode() {}

// Join combines the accumulated plan with one more entity. Trees are
// left-deep: the right side is always a bare scan, and a multi-hop path is
// expanded into one Join per hop. All column pairs of the hop's aggregated
// edge are AND-combined equality conjuncts.
type Join struct {
	Left        Node
	Right       *Scan
	From        string // entity the hop leaves (rightmost of Left)
	To          string // entity the hop reaches (Right.Entity)
	Pairs       []graph.ColumnPair
	Cardinality model.JoinCardinality
}

func (*Join) logicalNode() {}

// Filter applies AND-combined predicates.
type Filter struct {
	Input      Node
	Predicates []model.Expr
}

func (*Filter) logicalNode() {}

// Aggregate groups by the group keys and evaluates the expanded measures.
type Aggregate struct {
	Input    Node
	GroupBy  []model.ColumnRef
	Measures []graph.ExpandedMeasure
}

func (*Aggregate) logicalNode() {}

// TimeMeasure computes one time-intelligence measure over the aggregate
// output, aliased to Alias (measure_suffix).
type TimeMeasure struct {
	Input    Node
	Measure  graph.ExpandedMeasure
	Modifier TimeModifier
	Calendar model.ColumnRef
	Alias    string
}

func (*TimeMeasure) logicalNode() {}

// InlineMeasure computes one user-expression show item, aliased to Name.
type InlineMeasure struct {
	Input Node
	Name  string
	Expr  model.Expr
}

func (*InlineMeasure) logicalNode() {}

// Project selects the report's output items, one per show entry, in order.
type Project struct {
	Input Node
	Items []ProjectItem
}

func (*Project) logicalNode() {}

// ProjectItem is one projected output.
//
// Sealed: a plain column, an aggregated measure, or a reference to a value
// computed by a time-measure or inline-measure wrapper below the project.
type ProjectItem interface {
	projectItem()
}

// ProjectColumn projects a plain column.
type ProjectColumn struct {
	Ref model.ColumnRef
}

func (ProjectColumn) projectItem() {}

// ProjectMeasure projects an aggregated measure, aliased to its name. The
// expanded expression is emitted - never the bare measure name.
type ProjectMeasure struct {
	Measure graph.ExpandedMeasure
}

func (ProjectMeasure) projectItem() {}

// ProjectComputed projects a value computed by a wrapper node (time-measure
// or inline-measure), by alias.
type ProjectComputed struct {
	Alias string
}

func (ProjectComputed) projectItem() {}

// Sort orders the output.
type Sort struct {
	Input Node
	Keys  []model.SortKey
}

func (*Sort) logicalNode() {}

// Limit caps the output row count.
type Limit struct {
	Input Node
	Count int
}

func (*Limit) logicalNode() {}

// Tables returns the entities of the scan/join segment under the node, in
// join order. Wrapper nodes delegate to their input.
func Tables(n Node) []string {
	switch v := n.(type) {
	case *Scan:
		return []string{v.Entity}
	case *Join:
		return append(Tables(v.Left), v.Right.Entity)
	case *Filter:
		return Tables(v.Input)
	case *Aggregate:
		return Tables(v.Input)
	case *TimeMeasure:
		return Tables(v.Input)
	case *InlineMeasure:
		return Tables(v.Input)
	case *Project:
		return Tables(v.Input)
	case *Sort:
		return Tables(v.Input)
	case *Limit:
		return Tables(v.Input)
	}
	return nil
}
