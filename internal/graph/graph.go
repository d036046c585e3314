package graph

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// Provenance records where a REFERENCES edge came from.
type Provenance string

const (
	ProvenanceForeignKey  Provenance = "foreign-key"
	ProvenanceStatistical Provenance = "statistical"
	ProvenanceExplicit    Provenance = "explicit"
)

// Reference is a column-to-column link (foreign key, statistically inferred,
// or explicitly declared in the model).
type Reference struct {
	From       model.ColumnRef
	To         model.ColumnRef
	Provenance Provenance
	Confidence float64
}

// ColumnPair is one equality conjunct of a join: from-column = to-column.
type ColumnPair struct {
	FromColumn string
	ToColumn   string
}

// JoinEdge aggregates every reference between an ordered entity pair. There
// is at most one JoinEdge per ordered pair; all its column pairs become
// AND-combined equality conjuncts when the edge is joined.
type JoinEdge struct {
	From        string
	To          string
	Pairs       []ColumnPair
	Cardinality model.JoinCardinality
}

// DependsOn is a measure-to-column edge: one per atom reference found when
// the measure's stored expression was parsed at build time.
type DependsOn struct {
	Entity  string
	Measure string
	Column  string
}

// Graph is the frozen dependency graph. Construct it with a Builder; once
// built it is immutable and safe for concurrent readers.
type Graph struct {
	entities    map[string]*model.Entity
	entityOrder []string

	columns       map[string]*model.Column // key: entity.column
	columnsByEnt  map[string][]*model.Column
	measures      map[string]*model.Measure // key: entity.measure
	measuresByEnt map[string][]*model.Measure

	references []Reference
	joins      map[string][]*JoinEdge // adjacency in edge-insertion order
	joinByPair map[string]*JoinEdge   // key: from->to
	depends    []DependsOn
}

// canonKey normalizes an identifier for lookup: NFC then lower case.
func canonKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(norm.NFC.String(p))
	}
	return strings.Join(parts, ".")
}

// Entity returns the entity by name, or an ENTITY_NOT_FOUND error.
func (g *Graph) Entity(name string) (*model.Entity, error) {
	e, ok := g.entities[canonKey(name)]
	if !ok {
		return nil, entityNotFound(name)
	}
	return e, nil
}

// HasEntity reports whether the entity exists.
func (g *Graph) HasEntity(name string) bool {
	_, ok := g.entities[canonKey(name)]
	return ok
}

// Column returns a column by owning entity and name.
func (g *Graph) Column(entity, name string) (*model.Column, bool) {
	c, ok := g.columns[canonKey(entity, name)]
	return c, ok
}

// Columns returns the entity's columns in declaration order.
func (g *Graph) Columns(entity string) []*model.Column {
	return g.columnsByEnt[canonKey(entity)]
}

// Measure returns a measure by owning entity and name.
func (g *Graph) Measure(entity, name string) (*model.Measure, bool) {
	m, ok := g.measures[canonKey(entity, name)]
	return m, ok
}

// Measures returns the entity's measures in declaration order.
func (g *Graph) Measures(entity string) []*model.Measure {
	return g.measuresByEnt[canonKey(entity)]
}

// Entities returns all entity names in declaration order.
func (g *Graph) Entities() []string {
	out := make([]string, 0, len(g.entityOrder))
	for _, k := range g.entityOrder {
		out = append(out, g.entities[k].Name)
	}
	return out
}

// JoinEdge returns the aggregated JOINS_TO edge for an ordered entity pair.
func (g *Graph) JoinEdge(from, to string) (*JoinEdge, bool) {
	e, ok := g.joinByPair[canonKey(from)+"->"+canonKey(to)]
	return e, ok
}

// References returns every REFERENCES edge in insertion order.
func (g *Graph) References() []Reference { return g.references }

// Depends returns every DEPENDS_ON edge in insertion order.
func (g *Graph) Depends() []DependsOn { return g.depends }

// RowCount returns the entity's known row count. The boolean is false when
// the model carries no statistics for the entity.
func (g *Graph) RowCount(entity string) (int64, bool) {
	e, ok := g.entities[canonKey(entity)]
	if !ok || !e.RowCountKnown {
		return 0, false
	}
	return e.RowCount, true
}

// ColumnCardinality returns the cardinality hint for a column,
// CardinalityUnknown when the column is absent or unhinted.
func (g *Graph) ColumnCardinality(entity, column string) model.CardinalityHint {
	c, ok := g.Column(entity, column)
	if !ok || c.Cardinality == "" {
		return model.CardinalityUnknown
	}
	return c.Cardinality
}

// FirstTemporalColumn returns the first date/timestamp-typed column on the
// entity in declaration order, or false if it has none.
func (g *Graph) FirstTemporalColumn(entity string) (*model.Column, bool) {
	for _, c := range g.columnsByEnt[canonKey(entity)] {
		if c.IsTemporal() {
			return c, true
		}
	}
	return nil, false
}

// Builder accumulates model objects and produces an immutable Graph.
// Builders are single-use: call Build exactly once, then discard.
type Builder struct {
	g        *Graph
	explicit map[string]model.JoinCardinality // from->to overrides
	errs     []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		g: &Graph{
			entities:      make(map[string]*model.Entity),
			columns:       make(map[string]*model.Column),
			columnsByEnt:  make(map[string][]*model.Column),
			measures:      make(map[string]*model.Measure),
			measuresByEnt: make(map[string][]*model.Measure),
			joins:         make(map[string][]*JoinEdge),
			joinByPair:    make(map[string]*JoinEdge),
		},
		explicit: make(map[string]model.JoinCardinality),
	}
}

// AddEntity registers an entity. Duplicate names are a build error.
func (b *Builder) AddEntity(e model.Entity) *Builder {
	key := canonKey(e.Name)
	if _, dup := b.g.entities[key]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate entity %q", e.Name))
		return b
	}
	if e.Size == "" {
		e.Size = model.SizeUnknown
	}
	ent := e
	b.g.entities[key] = &ent
	b.g.entityOrder = append(b.g.entityOrder, key)
	return b
}

// AddColumn registers a column on an already-added entity.
func (b *Builder) AddColumn(c model.Column) *Builder {
	entKey := canonKey(c.Entity)
	if _, ok := b.g.entities[entKey]; !ok {
		b.errs = append(b.errs, fmt.Errorf("column %s.%s: unknown entity %q", c.Entity, c.Name, c.Entity))
		return b
	}
	key := canonKey(c.Entity, c.Name)
	if _, dup := b.g.columns[key]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate column %s.%s", c.Entity, c.Name))
		return b
	}
	if c.Cardinality == "" {
		c.Cardinality = model.CardinalityUnknown
	}
	col := c
	b.g.columns[key] = &col
	b.g.columnsByEnt[entKey] = append(b.g.columnsByEnt[entKey], &col)
	return b
}

// AddMeasure registers a measure on an already-added entity.
func (b *Builder) AddMeasure(m model.Measure) *Builder {
	entKey := canonKey(m.Entity)
	if _, ok := b.g.entities[entKey]; !ok {
		b.errs = append(b.errs, fmt.Errorf("measure %s.%s: unknown entity %q", m.Entity, m.Name, m.Entity))
		return b
	}
	key := canonKey(m.Entity, m.Name)
	if _, dup := b.g.measures[key]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate measure %s.%s", m.Entity, m.Name))
		return b
	}
	ms := m
	b.g.measures[key] = &ms
	b.g.measuresByEnt[entKey] = append(b.g.measuresByEnt[entKey], &ms)
	return b
}

// AddReference records a column-to-column REFERENCES edge. Build aggregates
// references into JOINS_TO edges per ordered entity pair.
func (b *Builder) AddReference(from, to model.ColumnRef, prov Provenance, confidence float64) *Builder {
	for _, ref := range []model.ColumnRef{from, to} {
		if _, ok := b.g.columns[canonKey(ref.Entity, ref.Column)]; !ok {
			b.errs = append(b.errs, fmt.Errorf("reference %s -> %s: unknown column %s", from, to, ref))
			return b
		}
	}
	b.g.references = append(b.g.references, Reference{From: from, To: to, Provenance: prov, Confidence: confidence})
	return b
}

// Relate overrides the cardinality of the from→to JOINS_TO edge. Without an
// override, the reference direction defaults to N:1 (foreign key pointing
// at a key) and the reverse edge inverts it.
func (b *Builder) Relate(from, to string, card model.JoinCardinality) *Builder {
	b.explicit[canonKey(from)+"->"+canonKey(to)] = card
	return b
}

// Build freezes the graph: references are aggregated into JOINS_TO edges
// (both directions), measure expressions are parsed to derive DEPENDS_ON
// edges, and the immutable Graph is returned. The Builder must not be used
// afterwards.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	// Aggregate references into one JOINS_TO edge per ordered pair, in
	// reference-insertion order. The reverse edge carries swapped pairs and
	// inverted cardinality.
	// The referencing side is the many side by default, so the edge in
	// reference direction is N:1 and the reverse edge 1:N; Relate overrides.
	for _, ref := range b.g.references {
		b.addPair(ref.From.Entity, ref.To.Entity, ColumnPair{ref.From.Column, ref.To.Column}, model.ManyToOne)
		b.addPair(ref.To.Entity, ref.From.Entity, ColumnPair{ref.To.Column, ref.From.Column}, model.OneToMany)
	}
	for pairKey, edge := range b.g.joinByPair {
		if card, ok := b.explicit[pairKey]; ok {
			edge.Cardinality = card
		}
	}

	// Derive DEPENDS_ON edges from measure expressions. An unparseable
	// expression is surfaced here rather than at planning time.
	for _, entKey := range b.g.entityOrder {
		for _, m := range b.g.measuresByEnt[entKey] {
			expr, err := model.ParseExpr(m.Expression)
			if err != nil {
				return nil, &Error{Code: ErrCodeInvalidExpression, Entity: m.Entity, Measure: m.Name, Cause: err}
			}
			for _, atom := range model.Atoms(expr) {
				b.g.depends = append(b.g.depends, DependsOn{Entity: m.Entity, Measure: m.Name, Column: atom})
			}
		}
	}

	g := b.g
	b.g = nil
	return g, nil
}

func (b *Builder) addPair(from, to string, pair ColumnPair, card model.JoinCardinality) {
	pairKey := canonKey(from) + "->" + canonKey(to)
	edge, ok := b.g.joinByPair[pairKey]
	if !ok {
		edge = &JoinEdge{From: from, To: to, Cardinality: card}
		b.g.joinByPair[pairKey] = edge
		b.g.joins[canonKey(from)] = append(b.g.joins[canonKey(from)], edge)
	}
	for _, p := range edge.Pairs {
		if p == pair {
			return
		}
	}
	edge.Pairs = append(edge.Pairs, pair)
}
