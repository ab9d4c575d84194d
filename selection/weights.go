package selection

import "math"

// NormalizeWeights scales weights to sum to 1. Non-finite and non-positive
// entries count as zero; if nothing positive remains the result is uniform.
func NormalizeWeights(ws []float64) []float64 {
	out := make([]float64, len(ws))
	sum := 0.0
	for i, w := range ws {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			continue
		}
		out[i] = w
		sum += w
	}
	if len(out) == 0 {
		return out
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		u := 1 / float64(len(out))
		for i := range out {
			out[i] = u
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
