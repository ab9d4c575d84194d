package rules

import "github.com/notnil/chess"

// Termination names how a finished game ended.
type Termination string

const (
	TerminationNone                 Termination = ""
	TerminationCheckmate            Termination = "checkmate"
	TerminationStalemate            Termination = "stalemate"
	TerminationInsufficientMaterial Termination = "insufficient_material"
	TerminationThreefold            Termination = "threefold_repetition"
	TerminationFivefold             Termination = "fivefold_repetition"
	TerminationFiftyMoves           Termination = "fifty_moves"
	TerminationSeventyFiveMoves     Termination = "seventyfive_moves"
	TerminationOther                Termination = "other"
)

// Outcome summarises the game state. Result uses PGN notation.
type Outcome struct {
	Over        bool        `json:"over"`
	Result      string      `json:"result"`
	Winner      Side        `json:"winner,omitempty"`
	Termination Termination `json:"termination,omitempty"`
}

// Outcome reports whether the game has ended.
func (g *Game) Outcome() Outcome {
	o := g.g.Outcome()
	if o == chess.NoOutcome {
		return Outcome{Result: "*"}
	}
	out := Outcome{Over: true, Result: o.String(), Termination: termination(g.g.Method())}
	switch o {
	case chess.WhiteWon:
		out.Winner = White
	case chess.BlackWon:
		out.Winner = Black
	}
	return out
}

// claimDraws ends the game on a claimable draw (threefold repetition,
// fifty-move rule), matching automated play.
func (g *Game) claimDraws() {
	if g.g.Outcome() != chess.NoOutcome {
		return
	}
	for _, m := range g.g.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			if err := g.g.Draw(m); err == nil {
				return
			}
		}
	}
}

func termination(m chess.Method) Termination {
	switch m {
	case chess.Checkmate:
		return TerminationCheckmate
	case chess.Stalemate:
		return TerminationStalemate
	case chess.InsufficientMaterial:
		return TerminationInsufficientMaterial
	case chess.ThreefoldRepetition:
		return TerminationThreefold
	case chess.FivefoldRepetition:
		return TerminationFivefold
	case chess.FiftyMoveRule:
		return TerminationFiftyMoves
	case chess.SeventyFiveMoveRule:
		return TerminationSeventyFiveMoves
	case chess.NoMethod:
		return TerminationNone
	default:
		return TerminationOther
	}
}
