package selection

import "chess-persona/persona"

// IsEndgame reports whether the remaining non-king material is at or below
// the persona's threshold.
func IsEndgame(p persona.Profile, nonKingPieces int) bool {
	return nonKingPieces <= p.PiecesThreshold
}

// AdjustForPhase returns the search depth and sampling temperature for the
// current phase. Endgames apply the persona's deltas; depth never drops below 1.
func AdjustForPhase(p persona.Profile, nonKingPieces int) (depth int, temperature float64) {
	depth, temperature = p.Depth, p.PickTemperature
	if IsEndgame(p, nonKingPieces) {
		depth += p.EndgameDepthDelta
		temperature += p.EndgameTempDelta
	}
	if depth < 1 {
		depth = 1
	}
	return depth, temperature
}
