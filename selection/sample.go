package selection

import (
	"math"

	"chess-persona/persona"
)

// DefaultBlunderThreshold is the centipawn loss against the best line at or
// above which a sampled move counts as a blunder.
const DefaultBlunderThreshold = 150

const minTemperature = 1e-4

// SampleInput is one sampling call over already ranked candidates.
type SampleInput struct {
	Candidates       []Candidate // best-first
	Temperature      float64
	Mercy            *persona.MercyPolicy
	Curve            *persona.RankCurve
	EnforceNoBlunder bool
	BlunderThreshold int
}

// SampleResult reports the pick and how it was reached.
type SampleResult struct {
	Index         int
	Move          string
	SelectedScore int
	BestScore     int
	// RawBlunder is the classification before the no-blunder override and
	// is what the budget is charged against.
	RawBlunder bool
	Blunder    bool
	Corrected  bool
	// Weights is the normalized distribution that was drawn from; nil when
	// the pick was deterministic.
	Weights []float64
}

// ResolveBlunderThreshold picks the explicit threshold when given, then the
// mercy eval-gap threshold, then the default.
func ResolveBlunderThreshold(explicit *int, mercy *persona.MercyPolicy) int {
	if explicit != nil {
		return *explicit
	}
	if mercy != nil && mercy.EvalGapThreshold != nil {
		return *mercy.EvalGapThreshold
	}
	return DefaultBlunderThreshold
}

// Sample chooses among ranked candidates. With temperature <= 0 or a single
// candidate it returns the top line without touching rng.
func Sample(in SampleInput, rng *RNG) (SampleResult, bool) {
	cands := in.Candidates
	if len(cands) == 0 {
		return SampleResult{}, false
	}
	best := cands[0]
	top := SampleResult{
		Index:         0,
		Move:          best.Move,
		SelectedScore: best.Score,
		BestScore:     best.Score,
	}
	if in.Temperature <= 0 || len(cands) == 1 {
		return top, true
	}

	scale := math.Max(in.Temperature, minTemperature)
	weights := make([]float64, len(cands))
	for i, c := range cands {
		delta := float64(best.Score - c.Score)
		weights[i] = math.Exp(-(delta / 100.0) / scale)
	}

	ApplyMercy(weights, cands, in.Mercy)

	curve := MakeCurveWeights(in.Curve, len(cands))
	for i := range weights {
		weights[i] *= curve[i]
	}

	weights = NormalizeWeights(weights)
	idx := rng.WeightedChoice(weights)
	if idx < 0 {
		idx = 0
	}

	picked := cands[idx]
	res := SampleResult{
		Index:         idx,
		Move:          picked.Move,
		SelectedScore: picked.Score,
		BestScore:     best.Score,
		Weights:       weights,
	}
	res.RawBlunder = best.Score-picked.Score >= in.BlunderThreshold
	res.Blunder = res.RawBlunder

	if in.EnforceNoBlunder && res.Blunder {
		res.Index = 0
		res.Move = best.Move
		res.SelectedScore = best.Score
		res.Blunder = false
		res.Corrected = true
	}
	return res, true
}
