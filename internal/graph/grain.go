package graph

// InferGrain returns the entity that carries the grain of a result over the
// given entities: the one with the largest known row count.
//
// When no candidate has a known row count the first entity in input order is
// returned, so that a report over entities without statistics still plans
// deterministically rather than failing. Entities with known counts always
// beat entities without.
//
// Fails with ENTITY_NOT_FOUND if any entity is absent from the graph.
func (g *Graph) InferGrain(entities []string) (string, error) {
	if len(entities) == 0 {
		return "", &Error{Code: ErrCodeEntityNotFound, Message: "no entities given"}
	}

	best := ""
	bestRows := int64(-1)
	for _, name := range entities {
		e, err := g.Entity(name)
		if err != nil {
			return "", err
		}
		if best == "" {
			best = e.Name
		}
		if e.RowCountKnown && e.RowCount > bestRows {
			best = e.Name
			bestRows = e.RowCount
		}
	}
	return best, nil
}
