package model

// Report is a validated report request: the planner's sole input besides
// the graph. Reports arrive from the upstream validation layer; the planner
// re-checks references only as a defensive fallback.
type Report struct {
	// Name identifies the report, for diagnostics only.
	Name string

	// From lists the entities the report reads, base entity first.
	From []string

	// UseDate optionally names the calendar column(s) for time intelligence.
	// When empty, the first temporal column on the base entity is used.
	UseDate []string

	// Period is an optional date-range expression applied as a filter on the
	// calendar column. Nil when absent.
	Period Expr

	// Group lists grouping columns in entity.column form.
	Group []string

	// Show lists the report's output items in order.
	Show []ShowItem

	// Filters are predicate expressions, all AND-combined.
	Filters []Expr

	// Sort lists sort keys, applied in order.
	Sort []SortKey

	// Limit caps the result row count. Zero means no limit.
	Limit int
}

// ShowItem is one entry in a report's show list.
//
// This is a sealed interface: the four item shapes (plain measure, measure
// with a time suffix, inline measure expression, plain column) are the only
// implementations, and planners switch over them exhaustively.
type ShowItem interface {
	showItem()
}

// ShowMeasure requests a measure by name. The name may be qualified
// ("sales.revenue"); unqualified names are resolved against the report's
// from-list in order.
type ShowMeasure struct {
	Measure string
}

func (ShowMeasure) showItem() {}

// ShowMeasureSuffix requests a measure with a time-intelligence suffix,
// e.g. {Measure: "revenue", Suffix: "ytd"}.
type ShowMeasureSuffix struct {
	Measure string
	Suffix  string
}

func (ShowMeasureSuffix) showItem() {}

// Alias returns the output column alias, measure_suffix.
func (s ShowMeasureSuffix) Alias() string {
	return s.Measure + "_" + s.Suffix
}

// ShowInline requests a free expression computed in the report, aliased to
// Name. The expression may reference columns but not atoms.
type ShowInline struct {
	Name string
	Expr Expr
}

func (ShowInline) showItem() {}

// ShowColumn requests a plain column.
type ShowColumn struct {
	Column ColumnRef
}

func (ShowColumn) showItem() {}

// SortKey is one ORDER BY entry.
type SortKey struct {
	Column     ColumnRef
	Descending bool
}
