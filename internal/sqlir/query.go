package sqlir

import (
	"fmt"
	"strings"
)

// SelectItem is one SELECT-list entry.
type SelectItem struct {
	Expr  Expr
	Alias string // empty for no alias
}

// TableRef is a FROM or JOIN relation: either a physical table or a derived
// table (subquery), aliased.
type TableRef struct {
	Table   string  // physical relation name; empty when Derived is set
	Derived *Select // derived table; nil for a physical relation
	Alias   string
}

// JoinClause is one JOIN ... ON ... entry.
type JoinClause struct {
	Ref TableRef
	On  Expr
}

// Select is a single SELECT statement under assembly. The emitter builds it
// bottom-up from the chosen physical plan; SQL renders it for a dialect.
type Select struct {
	Items   []SelectItem
	From    TableRef
	Joins   []JoinClause
	Where   []Expr // AND-combined
	GroupBy []Expr
	OrderBy []OrderItem
	Limit   int // 0 means no limit
}

// SQL serializes the statement for the dialect.
func (s *Select) SQL(d Dialect) string {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	if len(s.Items) == 0 {
		sb.WriteString("*")
	}
	for i, item := range s.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Render(item.Expr, d))
		if item.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(d.QuoteIdent(item.Alias))
		}
	}

	sb.WriteString(" FROM ")
	sb.WriteString(renderTableRef(s.From, d))

	for _, j := range s.Joins {
		sb.WriteString(" JOIN ")
		sb.WriteString(renderTableRef(j.Ref, d))
		sb.WriteString(" ON ")
		sb.WriteString(Render(j.On, d))
	}

	if where := AndAll(s.Where); where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(Render(where, d))
	}

	if len(s.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, gexpr := range s.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Render(gexpr, d))
		}
	}

	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Render(o.Expr, d))
			if o.Descending {
				sb.WriteString(" DESC")
			}
		}
	}

	if s.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", s.Limit))
	}

	return sb.String()
}

func renderTableRef(r TableRef, d Dialect) string {
	if r.Derived != nil {
		inner := r.Derived.SQL(d)
		return "(" + inner + ") AS " + d.QuoteIdent(r.Alias)
	}
	quoted := d.QuoteIdent(r.Table)
	if r.Alias != "" && r.Alias != r.Table {
		return quoted + " AS " + d.QuoteIdent(r.Alias)
	}
	return quoted
}
