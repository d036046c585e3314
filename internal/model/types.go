package model

import "fmt"

// EntityKind classifies an entity's role in the model.
type EntityKind string

const (
	KindFact      EntityKind = "fact"
	KindDimension EntityKind = "dimension"
)

// SizeCategory is a coarse size hint for an entity, used when no exact
// row count is known.
type SizeCategory string

const (
	SizeSmall   SizeCategory = "small"
	SizeMedium  SizeCategory = "medium"
	SizeLarge   SizeCategory = "large"
	SizeUnknown SizeCategory = "unknown"
)

// CardinalityHint is a column-level cardinality hint used for selectivity
// estimation. A high-cardinality column has close to one distinct value per
// row (ids, emails); a low-cardinality column has few (status, category).
type CardinalityHint string

const (
	CardinalityHigh    CardinalityHint = "high"
	CardinalityLow     CardinalityHint = "low"
	CardinalityUnknown CardinalityHint = "unknown"
)

// JoinCardinality tags a JOINS_TO edge with the relationship shape between
// the two entities, in edge direction (from → to).
type JoinCardinality string

const (
	OneToOne   JoinCardinality = "1:1"
	OneToMany  JoinCardinality = "1:N"
	ManyToOne  JoinCardinality = "N:1"
	ManyToMany JoinCardinality = "N:M"
)

// Invert returns the cardinality of the reversed edge.
func (c JoinCardinality) Invert() JoinCardinality {
	switch c {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	default:
		return c
	}
}

// Entity is a table-like unit in the semantic model.
type Entity struct {
	// Name is the logical entity name, unique within the model.
	Name string

	// Kind is fact or dimension.
	Kind EntityKind

	// Source is the physical relation name the entity maps to.
	Source string

	// RowCount is the known row count. Valid only when RowCountKnown is true;
	// entities without statistics plan against a configurable default.
	RowCount      int64
	RowCountKnown bool

	// Size is the coarse size category, SizeUnknown if not provided.
	Size SizeCategory
}

// Column is a column owned by exactly one entity.
type Column struct {
	Entity      string
	Name        string
	Type        string // physical data type, e.g. "bigint", "varchar", "date"
	Cardinality CardinalityHint
}

// IsTemporal reports whether the column's type is a date or timestamp type,
// making it a calendar-dimension candidate.
func (c Column) IsTemporal() bool {
	switch c.Type {
	case "date", "timestamp", "timestamptz", "datetime":
		return true
	}
	return false
}

// Measure is a named aggregate or calculated metric attached to an entity.
// Expression holds the stored expression text, e.g. "SUM(@amount)"; atom
// references (@name) are placeholders for columns on the owning entity.
type Measure struct {
	Entity     string
	Name       string
	Expression string
}

// ColumnRef names a column, optionally qualified by entity. An unqualified
// reference (empty Entity) is resolved against the report's base entity.
type ColumnRef struct {
	Entity string
	Column string
}

// String renders the reference in entity.column form.
func (r ColumnRef) String() string {
	if r.Entity == "" {
		return r.Column
	}
	return r.Entity + "." + r.Column
}

// ParseColumnRef splits an "entity.column" or bare "column" reference.
// More than one dot is an error: nested qualification is not part of the
// model.
func ParseColumnRef(s string) (ColumnRef, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			rest := s[i+1:]
			for j := 0; j < len(rest); j++ {
				if rest[j] == '.' {
					return ColumnRef{}, fmt.Errorf("invalid column reference %q: too many qualifiers", s)
				}
			}
			if i == 0 || rest == "" {
				return ColumnRef{}, fmt.Errorf("invalid column reference %q", s)
			}
			return ColumnRef{Entity: s[:i], Column: rest}, nil
		}
	}
	if s == "" {
		return ColumnRef{}, fmt.Errorf("empty column reference")
	}
	return ColumnRef{Column: s}, nil
}
