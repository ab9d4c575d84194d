package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/notnil/chess"
)

func play(t *testing.T, g *Game, moves ...string) {
	t.Helper()
	for _, m := range moves {
		if err := g.Move(m); err != nil {
			t.Fatalf("move %s: %v", m, err)
		}
	}
}

func TestNewGameStartPosition(t *testing.T) {
	g := NewGame()
	if g.FEN() != StartFEN {
		t.Fatalf("fen: got %q", g.FEN())
	}
	if n := len(g.LegalMoves()); n != 20 {
		t.Fatalf("legal moves: got %d, want 20", n)
	}
	if n := g.NonKingPieceCount(); n != 30 {
		t.Fatalf("pieces: got %d, want 30", n)
	}
	if g.SideToMove() != White || g.FullMoveNumber() != 1 {
		t.Fatalf("side %s move %d", g.SideToMove(), g.FullMoveNumber())
	}
	if o := g.Outcome(); o.Over || o.Result != "*" {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestMoveRejectsIllegal(t *testing.T) {
	g := NewGame()
	for _, m := range []string{"e2e5", "zz", "", "e7e5"} {
		err := g.Move(m)
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%q: got %v, want ErrIllegalMove", m, err)
		}
	}
	if g.Ply() != 0 {
		t.Fatalf("illegal moves must not change the game")
	}
}

func TestMoveAdvancesCounters(t *testing.T) {
	g := NewGame()
	play(t, g, "e2e4", "e7e5", "g1f3")
	if g.SideToMove() != Black || g.FullMoveNumber() != 2 {
		t.Fatalf("side %s move %d", g.SideToMove(), g.FullMoveNumber())
	}
	want := []string{"e2e4", "e7e5", "g1f3"}
	got := g.MoveHistory()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("history: %v", got)
	}
}

func TestFromFEN(t *testing.T) {
	if _, err := FromFEN("not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("got %v, want ErrInvalidFEN", err)
	}
	g, err := FromFEN("4k3/8/8/8/8/8/4P3/4K3 w - - 0 40")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if g.NonKingPieceCount() != 1 || g.FullMoveNumber() != 40 {
		t.Fatalf("pieces %d move %d", g.NonKingPieceCount(), g.FullMoveNumber())
	}
}

func TestCheckmate(t *testing.T) {
	g := NewGame()
	play(t, g, "f2f3", "e7e5", "g2g4", "d8h4")
	o := g.Outcome()
	if !o.Over || o.Winner != Black || o.Termination != TerminationCheckmate || o.Result != "0-1" {
		t.Fatalf("outcome: %+v", o)
	}
	if err := g.Move("a2a3"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("move after mate: %v", err)
	}
}

func TestStalemate(t *testing.T) {
	g, err := FromFEN("k7/8/1Q6/8/8/8/8/7K w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	play(t, g, "b6c7")
	o := g.Outcome()
	if !o.Over || o.Winner != "" || o.Termination != TerminationStalemate || o.Result != "1/2-1/2" {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	g, err := FromFEN("8/8/8/4k3/8/8/3n4/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	play(t, g, "e1d2")
	if o := g.Outcome(); o.Termination != TerminationInsufficientMaterial {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestThreefoldRepetitionIsClaimed(t *testing.T) {
	g := NewGame()
	play(t, g, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8")
	o := g.Outcome()
	if !o.Over || o.Termination != TerminationThreefold {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestDrawIsClaimedWhenMovePlayed(t *testing.T) {
	g := NewGame()
	play(t, g, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8")
	if g.g.Outcome() != chess.Draw || g.g.Method() != chess.ThreefoldRepetition {
		t.Fatalf("draw not claimed by Move: %v %v", g.g.Outcome(), g.g.Method())
	}
}

func TestOutcomeDoesNotModifyGame(t *testing.T) {
	g := NewGame()
	play(t, g, "e2e4")
	before := g.FEN()
	for i := 0; i < 3; i++ {
		if o := g.Outcome(); o.Over {
			t.Fatalf("outcome: %+v", o)
		}
	}
	if g.FEN() != before || g.g.Outcome() != chess.NoOutcome {
		t.Fatalf("Outcome changed the game")
	}
}

func TestFiftyMoveRuleClaimedFromFEN(t *testing.T) {
	g, err := FromFEN("8/8/4k3/8/8/4K3/4R3/8 w - - 100 80")
	if err != nil {
		t.Fatal(err)
	}
	o := g.Outcome()
	if !o.Over || o.Termination != TerminationFiftyMoves || o.Result != "1/2-1/2" {
		t.Fatalf("outcome: %+v", o)
	}
	if err := g.Move("e2e1"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("got %v, want game over", err)
	}
}

func TestPGNHeaders(t *testing.T) {
	g := NewGame()
	play(t, g, "e2e4", "c7c5")
	pgn := g.PGN([][2]string{{"Event", "Persona Sim"}, {"White", "adept"}})
	for _, want := range []string{`[Event "Persona Sim"]`, `[White "adept"]`, "1. e4 c5"} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGame()
	c := g.Clone()
	play(t, c, "d2d4")
	if g.Ply() != 0 || c.Ply() != 1 {
		t.Fatalf("clone shares state")
	}
}
