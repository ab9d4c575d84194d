// Package rules is the board model used by sessions: legal moves, FEN and PGN
// round-tripping, and end-of-game detection. It wraps notnil/chess.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Side is the colour to move.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Game is a chess game in progress. It is not safe for concurrent use;
// sessions guard it with their own lock.
type Game struct {
	g *chess.Game
}

// NewGame starts from the initial position.
func NewGame() *Game {
	return &Game{g: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

// FromFEN starts from an arbitrary position.
func FromFEN(fen string) (*Game, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	g := &Game{g: chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))}
	g.claimDraws()
	return g, nil
}

func (g *Game) FEN() string { return g.g.FEN() }

// SideToMove returns the colour whose turn it is.
func (g *Game) SideToMove() Side {
	if g.g.Position().Turn() == chess.Black {
		return Black
	}
	return White
}

// FullMoveNumber is the FEN full-move counter.
func (g *Game) FullMoveNumber() int {
	fields := strings.Fields(g.g.FEN())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// NonKingPieceCount counts every piece on the board except the two kings.
func (g *Game) NonKingPieceCount() int {
	n := 0
	for _, p := range g.g.Position().Board().SquareMap() {
		if p != chess.NoPiece && p.Type() != chess.King {
			n++
		}
	}
	return n
}

// LegalMoves lists the legal moves in UCI notation.
func (g *Game) LegalMoves() []string {
	moves := g.g.ValidMoves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// IsLegal reports whether the UCI move is legal in the current position.
func (g *Game) IsLegal(uci string) bool {
	_, err := chess.UCINotation{}.Decode(g.g.Position(), uci)
	if err != nil {
		return false
	}
	for _, m := range g.LegalMoves() {
		if m == uci {
			return true
		}
	}
	return false
}

// Move plays a UCI move.
func (g *Game) Move(uci string) error {
	if g.Outcome().Over {
		return ErrGameOver
	}
	uci = strings.ToLower(strings.TrimSpace(uci))
	if !g.IsLegal(uci) {
		return &MoveError{Move: uci, Err: ErrIllegalMove}
	}
	if err := g.g.MoveStr(uci); err != nil {
		return &MoveError{Move: uci, Err: fmt.Errorf("%w: %v", ErrIllegalMove, err)}
	}
	g.claimDraws()
	return nil
}

// MoveHistory returns the moves played so far in UCI notation.
func (g *Game) MoveHistory() []string {
	moves := g.g.Moves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// Ply is the number of half-moves played in this game object.
func (g *Game) Ply() int { return len(g.g.Moves()) }

// Clone returns an independent copy.
func (g *Game) Clone() *Game { return &Game{g: g.g.Clone()} }

// PGN renders the game with the given header tags, in order.
func (g *Game) PGN(tags [][2]string) string {
	c := g.g.Clone()
	for _, kv := range tags {
		c.AddTagPair(kv[0], kv[1])
	}
	return c.String()
}
