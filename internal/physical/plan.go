package physical

import (
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// Node is a node of a physical candidate tree.
//
// This is a sealed interface - only types in this package implement it.
// The cost estimator and the SQL emitter both switch exhaustively on the
// concrete types.
type Node interface {
	physicalNode()
}

// ScanStrategy is the access path for a scan.
type ScanStrategy string

const (
	ScanFull  ScanStrategy = "full"
	ScanIndex ScanStrategy = "index"
)

// JoinAlgo is the join algorithm.
type JoinAlgo string

const (
	JoinHash       JoinAlgo = "hash"
	JoinNestedLoop JoinAlgo = "nested_loop"
)

// AggregateMode places the aggregate relative to the join segment.
type AggregateMode string

const (
	// AggSingle aggregates once, above the fully joined input.
	AggSingle AggregateMode = "single"

	// AggPartial pre-aggregates the fact side below the join, grouped by
	// its join keys.
	AggPartial AggregateMode = "partial"

	// AggFinal re-aggregates partial results above the join. COUNT partials
	// are summed; SUM/MIN/MAX reapply the same function.
	AggFinal AggregateMode = "final"
)

// TimeStrategy is the execution strategy for a time-intelligence measure.
type TimeStrategy string

const (
	// TimeWindow computes the measure with a window function.
	TimeWindow TimeStrategy = "window"

	// TimeSelfJoin computes the measure with a correlated scalar subquery
	// against a second copy of the aggregate. Used on dialects without
	// window functions.
	TimeSelfJoin TimeStrategy = "self_join"
)

// Scan reads one entity with a chosen access path.
type Scan struct {
	Entity   string
	Strategy ScanStrategy

	// IndexKey is the column driving an index scan; empty for full scans.
	IndexKey string
}

func (*Scan) physicalNode() {}

// Join combines two inputs with a chosen algorithm. Trees stay left-deep;
// the right side is a scan except in pre-aggregate candidates, where the
// left side is a partial aggregate.
type Join struct {
	Left        Node
	Right       Node
	From        string
	To          string
	Pairs       []graph.ColumnPair
	Cardinality model.JoinCardinality
	Algo        JoinAlgo

	// BuildLeft marks the hash-join build side. It is decided by the cost
	// estimator, after row estimation, never hard-coded at generation.
	BuildLeft bool
}

func (*Join) physicalNode() {}

// Filter applies AND-combined predicates.
type Filter struct {
	Input      Node
	Predicates []model.Expr
}

func (*Filter) physicalNode() {}

// Aggregate groups and evaluates the expanded measures per its mode.
type Aggregate struct {
	Input    Node
	GroupBy  []model.ColumnRef
	Measures []graph.ExpandedMeasure
	Mode     AggregateMode
}

func (*Aggregate) physicalNode() {}

// TimeMeasure computes one time-intelligence measure with a chosen
// strategy.
type TimeMeasure struct {
	Input    Node
	Measure  graph.ExpandedMeasure
	Modifier logical.TimeModifier
	Calendar model.ColumnRef
	Alias    string
	Strategy TimeStrategy
}

func (*TimeMeasure) physicalNode() {}

// InlineMeasure computes one user-expression show item.
type InlineMeasure struct {
	Input Node
	Name  string
	Expr  model.Expr
}

func (*InlineMeasure) physicalNode() {}

// Project selects the report's output items in show order.
type Project struct {
	Input Node
	Items []logical.ProjectItem
}

func (*Project) physicalNode() {}

// Sort orders the output.
type Sort struct {
	Input Node
	Keys  []model.SortKey
}

func (*Sort) physicalNode() {}

// Limit caps the output row count.
type Limit struct {
	Input Node
	Count int
}

func (*Limit) physicalNode() {}
