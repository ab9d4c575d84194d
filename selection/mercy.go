package selection

import "chess-persona/persona"

// ApplyMercy scales the weights of candidates a lenient persona should be
// reluctant to play. Candidates must be ranked best-first; weights is
// modified in place. Both rules may hit rank 1, in which case both apply.
func ApplyMercy(weights []float64, candidates []Candidate, policy *persona.MercyPolicy) {
	if policy == nil || len(candidates) < 2 || len(weights) != len(candidates) {
		return
	}

	if policy.MateIn != nil {
		keep := policy.MateKeep()
		for i, c := range candidates {
			if c.Mate != nil && abs(*c.Mate) <= *policy.MateIn {
				weights[i] *= keep
			}
		}
	}

	if policy.EvalGapThreshold != nil {
		gap := candidates[0].Score - candidates[1].Score
		if gap >= *policy.EvalGapThreshold {
			weights[0] *= policy.EvalKeep()
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
