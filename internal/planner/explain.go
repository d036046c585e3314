package planner

import (
	"fmt"
	"strings"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
)

// Explain renders the chosen plan and the candidate costs as text.
func (r *Result) Explain() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "session: %s\n", r.SessionID)
	fmt.Fprintf(&sb, "cost: total=%.1f rows=%.0f cpu=%.1f io=%.1f memory=%.1f\n",
		r.Cost.Total, r.Cost.Rows, r.Cost.CPU, r.Cost.IO, r.Cost.Memory)
	fmt.Fprintf(&sb, "candidates: %d\n", len(r.CandidateCosts))
	for i, c := range r.CandidateCosts {
		marker := " "
		if i == r.ChosenIndex {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s [%d] total=%.1f rows=%.0f\n", marker, i, c.Total, c.Rows)
	}
	sb.WriteString("plan:\n")
	writePlan(&sb, r.Plan, 1)
	return sb.String()
}

func writePlan(sb *strings.Builder, n physical.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *physical.Scan:
		fmt.Fprintf(sb, "%sscan %s (%s", indent, v.Entity, v.Strategy)
		if v.IndexKey != "" {
			fmt.Fprintf(sb, " on %s", v.IndexKey)
		}
		sb.WriteString(")\n")
	case *physical.Join:
		build := "right"
		if v.BuildLeft {
			build = "left"
		}
		if v.Algo == physical.JoinHash {
			fmt.Fprintf(sb, "%s%s join %s (%s, build %s)\n", indent, v.Algo, v.To, v.Cardinality, build)
		} else {
			fmt.Fprintf(sb, "%s%s join %s (%s)\n", indent, v.Algo, v.To, v.Cardinality)
		}
		writePlan(sb, v.Left, depth+1)
		writePlan(sb, v.Right, depth+1)
	case *physical.Filter:
		fmt.Fprintf(sb, "%sfilter (%d predicates)\n", indent, len(v.Predicates))
		writePlan(sb, v.Input, depth+1)
	case *physical.Aggregate:
		fmt.Fprintf(sb, "%saggregate (%s) group_by=%s measures=%s\n",
			indent, v.Mode, refList(v.GroupBy), measureList(v))
		writePlan(sb, v.Input, depth+1)
	case *physical.TimeMeasure:
		fmt.Fprintf(sb, "%stime measure %s (%s over %s)\n", indent, v.Alias, v.Strategy, v.Calendar)
		writePlan(sb, v.Input, depth+1)
	case *physical.InlineMeasure:
		fmt.Fprintf(sb, "%sinline measure %s\n", indent, v.Name)
		writePlan(sb, v.Input, depth+1)
	case *physical.Project:
		fmt.Fprintf(sb, "%sproject (%d items)\n", indent, len(v.Items))
		writePlan(sb, v.Input, depth+1)
	case *physical.Sort:
		fmt.Fprintf(sb, "%ssort %s\n", indent, sortList(v.Keys))
		writePlan(sb, v.Input, depth+1)
	case *physical.Limit:
		fmt.Fprintf(sb, "%slimit %d\n", indent, v.Count)
		writePlan(sb, v.Input, depth+1)
	}
}

func refList(refs []model.ColumnRef) string {
	if len(refs) == 0 {
		return "[]"
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func measureList(a *physical.Aggregate) string {
	parts := make([]string, len(a.Measures))
	for i, m := range a.Measures {
		parts[i] = m.Name
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func sortList(keys []model.SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Column.String()
		if k.Descending {
			parts[i] += " desc"
		}
	}
	return strings.Join(parts, ", ")
}
