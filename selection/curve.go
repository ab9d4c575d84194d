package selection

import (
	"math"

	"chess-persona/persona"
)

// MakeCurveWeights expands a rank curve into k per-rank weights (rank 1 first).
// A nil curve is flat. A table shorter than k repeats its last entry.
func MakeCurveWeights(curve *persona.RankCurve, k int) []float64 {
	if k <= 0 {
		return []float64{}
	}
	out := make([]float64, k)
	if curve == nil {
		for i := range out {
			out[i] = 1
		}
		return out
	}

	switch curve.Type {
	case persona.CurveTable:
		if len(curve.Weights) == 0 {
			for i := range out {
				out[i] = 1
			}
			return out
		}
		last := curve.Weights[len(curve.Weights)-1]
		for i := range out {
			if i < len(curve.Weights) {
				out[i] = curve.Weights[i]
			} else {
				out[i] = last
			}
		}
	case persona.CurvePower:
		for i := range out {
			if curve.Alpha == 0 {
				out[i] = 1
				continue
			}
			w := 1 / math.Pow(float64(i+1), curve.Alpha)
			if math.IsNaN(w) || math.IsInf(w, 0) {
				w = 0
			}
			out[i] = w
		}
	default:
		for i := range out {
			out[i] = 1
		}
	}
	return out
}
