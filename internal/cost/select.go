package cost

import (
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
)

// SelectBest estimates every candidate once and returns the index of the one
// with the lowest total cost, plus every estimate in candidate order so that
// callers needn't re-estimate for explain output. Ties keep the earliest
// candidate, so selection is deterministic for a fixed generation order.
// Fails NO_VALID_PLANS on an empty list.
func SelectBest(g *graph.Graph, candidates []physical.Node, cfg Config) (int, []CostEstimate, error) {
	if len(candidates) == 0 {
		return 0, nil, &Error{Code: ErrCodeNoValidPlans, Message: "no candidates to select from"}
	}

	chosen := 0
	estimates := make([]CostEstimate, len(candidates))
	for i, cand := range candidates {
		est, err := Estimate(g, cand, cfg)
		if err != nil {
			return 0, nil, err
		}
		estimates[i] = est
		if est.Total < estimates[chosen].Total {
			chosen = i
		}
	}
	return chosen, estimates, nil
}
