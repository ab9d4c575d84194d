package selection

import (
	"context"
	"errors"
	"testing"

	"chess-persona/persona"
)

type fakePosition struct {
	fen    string
	pieces int
}

func (p fakePosition) FEN() string            { return p.fen }
func (p fakePosition) NonKingPieceCount() int { return p.pieces }

type profileMap map[string]persona.Profile

func (m profileMap) Resolve(name string) (persona.Profile, error) {
	p, ok := m[persona.NormalizeName(name)]
	if !ok {
		return persona.Profile{}, persona.ErrUnknownPersona
	}
	return p.Clone(), nil
}

type recordingSearcher struct {
	res   *SearchResult
	err   error
	calls []SearchRequest
}

func (s *recordingSearcher) Search(_ context.Context, req SearchRequest) (*SearchResult, error) {
	s.calls = append(s.calls, req)
	return s.res, s.err
}

var startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func lines(pairs ...any) []SearchLine {
	out := make([]SearchLine, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, SearchLine{Move: pairs[i].(string), Score: Centipawns(pairs[i+1].(int))})
	}
	return out
}

func TestSelectMoveDeterministicSingleCandidate(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 6, PickTemperature: 0, MultiPV: 1}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("A", 500)}}
	budget := NewBlunderBudgetWith(func(string) int { return 2 })
	rng := NewRNG(seedp(3))

	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position: fakePosition{fen: startFEN, pieces: 30},
		Persona:  "p",
		RNG:      rng,
		Budget:   budget,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Move != "A" || sel.Blunder || !sel.Deterministic {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if rng.Draws() != 0 {
		t.Fatalf("rng consumed at temperature 0")
	}
	if n, _ := budget.Remaining("p"); n != 2 {
		t.Fatalf("budget consumed: %d", n)
	}
	if len(search.calls) != 1 || search.calls[0].Depth != 6 || search.calls[0].MultiPV != 1 {
		t.Fatalf("search request: %+v", search.calls)
	}
}

func TestSelectMoveZeroTemperatureRequestsOneLine(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 8, PickTemperature: 0, MultiPV: 10}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("b1c3", 20, "e2e4", 40)}}

	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position: fakePosition{fen: startFEN, pieces: 30},
		Persona:  "p",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if search.calls[0].MultiPV != 1 {
		t.Fatalf("width: got %d, want 1", search.calls[0].MultiPV)
	}
	if sel.Move != "e2e4" {
		t.Fatalf("got %s, want top-ranked e2e4", sel.Move)
	}
}

func TestSelectMoveExhaustedBudgetForcesBest(t *testing.T) {
	profiles := profileMap{"p": {
		Name: "p", Depth: 6, PickTemperature: 1.0, MultiPV: 2,
		Curve: &persona.RankCurve{Type: persona.CurveTable, Weights: []float64{1, 1e6}},
	}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("A", 1000, "B", 200)}}
	sel := NewSelector(profiles, search, nil)

	for seed := int64(0); seed < 100; seed++ {
		budget := NewBlunderBudgetWith(func(string) int { return 0 })
		got, err := sel.SelectMove(context.Background(), Request{
			Position:         fakePosition{fen: startFEN, pieces: 30},
			Persona:          "p",
			Seed:             seedp(seed),
			BlunderThreshold: intp(150),
			Budget:           budget,
		})
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if got.Move != "A" || got.Blunder {
			t.Fatalf("seed %d: got %+v", seed, got)
		}
	}
}

func TestSelectMoveConsumesBudgetOnBlunder(t *testing.T) {
	profiles := profileMap{"p": {
		Name: "p", Depth: 6, PickTemperature: 1.0, MultiPV: 2,
		Curve: &persona.RankCurve{Type: persona.CurveTable, Weights: []float64{0, 1}},
	}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("A", 1000, "B", 200)}}
	budget := NewBlunderBudgetWith(func(string) int { return 1 })
	sel := NewSelector(profiles, search, nil)
	req := Request{Position: fakePosition{fen: startFEN, pieces: 30}, Persona: "p", Budget: budget, Seed: seedp(1)}

	first, err := sel.SelectMove(context.Background(), req)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if first.Move != "B" || !first.Blunder || first.BudgetRemaining != 0 {
		t.Fatalf("first: %+v", first)
	}

	second, err := sel.SelectMove(context.Background(), req)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if second.Move != "A" || !second.Corrected || second.Blunder {
		t.Fatalf("second: %+v", second)
	}
}

func TestSelectMoveSameSeedSameResult(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 6, PickTemperature: 2.5, MultiPV: 5}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("a", 50, "b", 40, "c", 30, "d", 20, "e", 10)}}
	sel := NewSelector(profiles, search, nil)
	rng := NewRNG(nil)

	for seed := int64(0); seed < 30; seed++ {
		req := Request{Position: fakePosition{fen: startFEN, pieces: 30}, Persona: "p", Seed: seedp(seed), RNG: rng}
		a, err := sel.SelectMove(context.Background(), req)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		b, err := sel.SelectMove(context.Background(), req)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if a.Move != b.Move {
			t.Fatalf("seed %d: %s vs %s", seed, a.Move, b.Move)
		}
	}
}

func TestSelectMoveEndgameAdjustsSearch(t *testing.T) {
	profiles := profileMap{"p": {
		Name: "p", Depth: 4, PickTemperature: 0, MultiPV: 10,
		EndgameDepthDelta: -2, EndgameTempDelta: 0.3, PiecesThreshold: 10,
	}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("a", 10, "b", 0)}}

	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position: fakePosition{fen: startFEN, pieces: 6},
		Persona:  "p",
		Seed:     seedp(1),
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !sel.Endgame || sel.Depth != 2 || sel.Temperature != 0.3 {
		t.Fatalf("phase: %+v", sel)
	}
	if c := search.calls[0]; c.Depth != 2 || c.MultiPV != 10 {
		t.Fatalf("search request: %+v", c)
	}
}

func TestSelectMoveHintsReplaceProfile(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 4, PickTemperature: 2, MultiPV: 10, PiecesThreshold: 0}}
	search := &recordingSearcher{res: &SearchResult{Lines: lines("a", 10, "b", 0)}}

	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position:        fakePosition{fen: startFEN, pieces: 30},
		Persona:         "p",
		DepthHint:       intp(9),
		TemperatureHint: floatp(0),
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Depth != 9 || sel.Temperature != 0 || search.calls[0].MultiPV != 1 {
		t.Fatalf("hints ignored: %+v / %+v", sel, search.calls[0])
	}
}

func TestSelectMoveFailures(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 4, PickTemperature: 1, MultiPV: 3}}
	pos := fakePosition{fen: startFEN, pieces: 30}

	_, err := NewSelector(profiles, &recordingSearcher{}, nil).SelectMove(context.Background(), Request{Position: pos, Persona: "nobody"})
	if !errors.Is(err, persona.ErrUnknownPersona) {
		t.Fatalf("unknown persona: %v", err)
	}

	cases := map[string]*recordingSearcher{
		"engine error": {err: errors.New("engine crashed")},
		"nil response": {},
		"no lines":     {res: &SearchResult{}},
		"all malformed": {res: &SearchResult{Lines: []SearchLine{
			{Move: "a"}, {Score: Centipawns(4)},
		}}},
	}
	for name, s := range cases {
		_, err := NewSelector(profiles, s, nil).SelectMove(context.Background(), Request{Position: pos, Persona: "p"})
		if !errors.Is(err, ErrRequestFailed) {
			t.Fatalf("%s: got %v, want ErrRequestFailed", name, err)
		}
		if len(s.calls) != 1 {
			t.Fatalf("%s: searcher called %d times, want exactly once", name, len(s.calls))
		}
	}
}

func TestSelectMoveDropsMalformedLines(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 4, PickTemperature: 0, MultiPV: 3}}
	search := &recordingSearcher{res: &SearchResult{Lines: []SearchLine{
		{Move: "x"},
		{Move: "g1f3", Score: Centipawns(15)},
	}}}
	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position: fakePosition{fen: startFEN, pieces: 30},
		Persona:  "p",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Move != "g1f3" || len(sel.Candidates) != 1 {
		t.Fatalf("unexpected: %+v", sel)
	}
}

func TestSelectMoveSingleBestSkipsBudget(t *testing.T) {
	profiles := profileMap{"p": {Name: "p", Depth: 4, PickTemperature: 2, MultiPV: 10}}
	search := &recordingSearcher{res: &SearchResult{SingleBest: true, Lines: []SearchLine{{Move: "d2d4"}}}}
	budget := NewBlunderBudgetWith(func(string) int { return 3 })
	rng := NewRNG(seedp(1))

	sel, err := NewSelector(profiles, search, nil).SelectMove(context.Background(), Request{
		Position: fakePosition{fen: startFEN, pieces: 30},
		Persona:  "p",
		Budget:   budget,
		RNG:      rng,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Move != "d2d4" || !sel.Deterministic || sel.BudgetRemaining != 3 || rng.Draws() != 0 {
		t.Fatalf("unexpected: %+v draws=%d", sel, rng.Draws())
	}
}
