package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"chess-persona/rules"
	"chess-persona/selection"
)

// fakeEngine answers UCI commands from a script. goLines is what it prints
// after each "go"; when holdUntilStop is set it prints bestmove only after
// "stop".
type fakeEngine struct {
	mu            sync.Mutex
	goLines       []string
	holdUntilStop bool
	received      []string
}

const fakeOptions = "option name Skill Level type spin default 20 min 0 max 20\n" +
	"option name UCI_LimitStrength type check default false\n" +
	"option name UCI_Elo type spin default 1320 min 1320 max 3190\n" +
	"option name MultiPV type spin default 1 min 1 max 500\n" +
	"option name Clear Hash type button\n"

func (f *fakeEngine) serve(in io.Reader, out io.WriteCloser) {
	defer out.Close()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		cmd := sc.Text()
		f.mu.Lock()
		f.received = append(f.received, cmd)
		script, hold := f.goLines, f.holdUntilStop
		f.mu.Unlock()

		switch {
		case cmd == "uci":
			fmt.Fprint(out, "id name FakeFish 1\nid author test\n"+fakeOptions+"uciok\n")
		case cmd == "isready":
			fmt.Fprint(out, "readyok\n")
		case strings.HasPrefix(cmd, "go"):
			for _, l := range script {
				fmt.Fprintln(out, l)
			}
			if !hold {
				fmt.Fprint(out, "bestmove e2e4 ponder e7e5\n")
			}
		case cmd == "stop":
			fmt.Fprint(out, "bestmove d2d4\n")
		case cmd == "quit":
			return
		}
	}
}

func (f *fakeEngine) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func startFake(t *testing.T, f *fakeEngine) *MultiPVEngine {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	go f.serve(cmdR, outW)

	e := newMultiPV(outR, cmdW, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.handshake(ctx))
	return e
}

func TestMultiPVSearchCollectsDeepestLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeEngine{goLines: []string{
		"info depth 1 multipv 1 score cp 10 pv d2d4",
		"info depth 1 multipv 2 score cp 5 pv e2e4",
		"info string NNUE enabled",
		"info depth 2 currmove g1f3 currmovenumber 3",
		"info depth 2 seldepth 3 multipv 1 score cp 35 nodes 100 pv e2e4 e7e5",
		"info depth 2 multipv 2 score lowerbound cp 90 pv g1f3",
		"info depth 2 multipv 2 score cp 20 pv d2d4 d7d5",
		"info depth 2 multipv 3 score mate -3 pv e2e5",
		"info depth 2 multipv 4 score cp 1 pv a2a3",
	}}
	e := startFake(t, f)
	require.Equal(t, "FakeFish 1", e.Name())

	res, err := e.Search(context.Background(), selection.SearchRequest{
		FEN:      rules.StartFEN,
		Depth:    2,
		MultiPV:  3,
		MoveTime: 350 * time.Millisecond,
		Options:  map[string]any{"UCI_Elo": 1175, "UCI_LimitStrength": true, "MultiPV": 10},
	})
	require.NoError(t, err)
	require.False(t, res.SingleBest)
	require.Len(t, res.Lines, 3)

	require.Equal(t, "e2e4", res.Lines[0].Move)
	require.Equal(t, *selection.Centipawns(35), *res.Lines[0].Score)
	require.Equal(t, []string{"e2e4", "e7e5"}, res.Lines[0].PV)
	require.Equal(t, "d2d4", res.Lines[1].Move)
	require.Equal(t, *selection.Centipawns(20), *res.Lines[1].Score)
	// illegal first move is blanked so the selector drops it
	require.Equal(t, "", res.Lines[2].Move)
	require.Nil(t, res.Lines[2].PV)
	require.Equal(t, *selection.Mate(-3), *res.Lines[2].Score)

	cmds := f.commands()
	require.Contains(t, cmds, "setoption name UCI_Elo value 1175")
	require.Contains(t, cmds, "setoption name UCI_LimitStrength value true")
	require.Contains(t, cmds, "setoption name MultiPV value 3")
	require.NotContains(t, cmds, "setoption name MultiPV value 10")
	require.Contains(t, cmds, "position fen "+rules.StartFEN)
	require.Contains(t, cmds, "go depth 2 movetime 350")

	require.NoError(t, e.Close())
}

func TestMultiPVOptionsSentOnlyOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeEngine{goLines: []string{"info depth 1 multipv 1 score cp 0 pv e2e4"}}
	e := startFake(t, f)
	req := selection.SearchRequest{FEN: rules.StartFEN, Depth: 1, MultiPV: 1, Options: map[string]any{"Skill Level": 5}}

	for i := 0; i < 3; i++ {
		_, err := e.Search(context.Background(), req)
		require.NoError(t, err)
	}
	n := 0
	for _, c := range f.commands() {
		if c == "setoption name Skill Level value 5" {
			n++
		}
	}
	require.Equal(t, 1, n)
	require.NoError(t, e.Close())
}

func TestMultiPVResetsOptionsLeftByEarlierSearch(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeEngine{goLines: []string{"info depth 1 multipv 1 score cp 0 pv e2e4"}}
	e := startFake(t, f)

	_, err := e.Search(context.Background(), selection.SearchRequest{
		FEN: rules.StartFEN, Depth: 1, MultiPV: 3,
		Options: map[string]any{"UCI_LimitStrength": true, "UCI_Elo": 450, "Skill Level": 0},
	})
	require.NoError(t, err)
	persona := len(f.commands())

	for i := 0; i < 2; i++ {
		_, err = e.Search(context.Background(), selection.SearchRequest{FEN: rules.StartFEN, MoveTime: time.Second})
		require.NoError(t, err)
	}

	var sets []string
	for _, c := range f.commands()[persona:] {
		if strings.HasPrefix(c, "setoption") {
			sets = append(sets, c)
		}
	}
	require.Equal(t, []string{
		"setoption name Skill Level value 20",
		"setoption name UCI_Elo value 1320",
		"setoption name UCI_LimitStrength value false",
		"setoption name MultiPV value 1",
	}, sets)
	require.NoError(t, e.Close())
}

func TestParseOptionDefault(t *testing.T) {
	name, def, ok := parseOptionDefault("option name Skill Level type spin default 20 min 0 max 20")
	require.True(t, ok)
	require.Equal(t, "Skill Level", name)
	require.Equal(t, "20", def)

	name, def, ok = parseOptionDefault("option name SyzygyPath type string default <empty>")
	require.True(t, ok)
	require.Equal(t, "SyzygyPath", name)
	require.Equal(t, "<empty>", def)

	_, def, ok = parseOptionDefault("option name Style type combo default Normal var Solid var Normal")
	require.True(t, ok)
	require.Equal(t, "Normal", def)

	for _, line := range []string{
		"option name Clear Hash type button",
		"id name FakeFish",
		"option name  type spin",
	} {
		_, _, ok := parseOptionDefault(line)
		require.False(t, ok, line)
	}
}

func TestPlanOptions(t *testing.T) {
	defaults := map[string]string{"uci_elo": "1320", "uci_limitstrength": "false"}
	applied := map[string]string{"UCI_Elo": "450", "UCI_LimitStrength": "true", "Contempt": "10", "MultiPV": "3"}

	plan := planOptions(map[string]any{"UCI_Elo": 450, "MultiPV": 8, "Hash": nil}, applied, defaults)
	require.Equal(t, []optionSetting{{Name: "UCI_LimitStrength", Value: "false"}}, plan)

	plan = planOptions(nil, map[string]string{"UCI_Elo": "1320"}, defaults)
	require.Empty(t, plan)

	plan = planOptions(map[string]any{"UCI_Elo": 1700}, nil, defaults)
	require.Equal(t, []optionSetting{{Name: "UCI_Elo", Value: "1700"}}, plan)
}

func TestMultiPVFallsBackToBestMove(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := startFake(t, &fakeEngine{})
	res, err := e.Search(context.Background(), selection.SearchRequest{FEN: rules.StartFEN, MultiPV: 5})
	require.NoError(t, err)
	require.True(t, res.SingleBest)
	require.Equal(t, []selection.SearchLine{{Move: "e2e4"}}, res.Lines)
	require.NoError(t, e.Close())
}

func TestMultiPVCancelStopsSearch(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeEngine{holdUntilStop: true, goLines: []string{"info depth 1 multipv 1 score cp 3 pv e2e4"}}
	e := startFake(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := e.Search(ctx, selection.SearchRequest{FEN: rules.StartFEN, MultiPV: 2})
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Contains(t, f.commands(), "stop")

	// the stream is clean for the next search
	f.mu.Lock()
	f.holdUntilStop = false
	f.mu.Unlock()
	res, err := e.Search(context.Background(), selection.SearchRequest{FEN: rules.StartFEN, Depth: 1, MultiPV: 2})
	require.NoError(t, err)
	require.Equal(t, "e2e4", res.Lines[0].Move)
	require.NoError(t, e.Close())
}

func TestMultiPVRejectsBadFEN(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := startFake(t, &fakeEngine{})
	_, err := e.Search(context.Background(), selection.SearchRequest{FEN: "garbage"})
	require.Error(t, err)
	require.NoError(t, e.Close())
}

func TestParseInfo(t *testing.T) {
	info, ok := parseInfo("info depth 12 seldepth 18 multipv 2 score mate 4 nodes 5 nps 9 pv h5f7 e8e7 c4d5")
	require.True(t, ok)
	require.Equal(t, 12, info.Depth)
	require.Equal(t, 2, info.MultiPV)
	require.Equal(t, selection.ScoreMate, info.Score.Kind)
	require.Equal(t, 4, info.Score.Value)
	require.Equal(t, []string{"h5f7", "e8e7", "c4d5"}, info.PV)

	info, ok = parseInfo("info depth 3 score cp -41 pv e7e5")
	require.True(t, ok)
	require.Equal(t, 1, info.MultiPV)
	require.Equal(t, -41, info.Score.Value)

	for _, line := range []string{
		"info depth 3 currmove e2e4 currmovenumber 1",
		"info string hello pv e2e4",
		"bestmove e2e4",
		"",
	} {
		_, ok := parseInfo(line)
		require.False(t, ok, line)
	}
}

func TestBestMoveOf(t *testing.T) {
	require.Equal(t, "e2e4", bestMoveOf("bestmove e2e4 ponder e7e5"))
	require.Equal(t, "", bestMoveOf("bestmove (none)"))
	require.Equal(t, "", bestMoveOf("bestmove"))
}

func TestGoCommand(t *testing.T) {
	require.Equal(t, "go depth 6", goCommand(selection.SearchRequest{Depth: 6}))
	require.Equal(t, "go movetime 250", goCommand(selection.SearchRequest{MoveTime: 250 * time.Millisecond}))
	require.Equal(t, "go depth 10", goCommand(selection.SearchRequest{}))
}

func TestFormatOption(t *testing.T) {
	require.Equal(t, "true", formatOption(true))
	require.Equal(t, "1450", formatOption(1450))
	require.Equal(t, "1450", formatOption(float64(1450)))
	require.Equal(t, "0.5", formatOption(0.5))
	require.Equal(t, "Hash", formatOption("Hash"))
	require.Equal(t, "", formatOption(nil))
}
