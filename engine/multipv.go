package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"chess-persona/selection"
)

const (
	stopGrace     = 2 * time.Second
	shutdownGrace = 3 * time.Second
	fallbackDepth = 10
)

// MultiPVEngine drives a UCI engine process and returns every ranked line
// of a MultiPV search. Searches are serialised on one process.
type MultiPVEngine struct {
	mu       sync.Mutex
	conn     *conn
	cmd      *exec.Cmd
	exited   chan struct{}
	name     string
	applied  map[string]string
	// defaults holds each advertised option's default, keyed by lower-case name.
	defaults map[string]string
	logger   *zap.Logger
}

// StartMultiPV launches the engine binary and completes the UCI handshake.
func StartMultiPV(ctx context.Context, path string, logger *zap.Logger) (*MultiPVEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %q: %w", path, err)
	}

	e := newMultiPV(stdout, stdin, logger)
	e.cmd = cmd
	e.exited = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(e.exited)
	}()

	if err := e.handshake(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func newMultiPV(r io.Reader, w io.WriteCloser, logger *zap.Logger) *MultiPVEngine {
	l := logger.Named("multipv")
	return &MultiPVEngine{
		conn:     newConn(r, w, l),
		applied:  make(map[string]string),
		defaults: make(map[string]string),
		logger:   l,
	}
}

func (e *MultiPVEngine) handshake(ctx context.Context) error {
	if err := e.conn.send("uci"); err != nil {
		return err
	}
	_, err := e.conn.waitFor(ctx, "uciok", func(line string) {
		if strings.HasPrefix(line, "id name ") {
			e.name = strings.TrimPrefix(line, "id name ")
		}
		if name, def, ok := parseOptionDefault(line); ok {
			e.defaults[strings.ToLower(name)] = def
		}
	})
	if err != nil {
		return fmt.Errorf("uci handshake: %w", err)
	}
	return e.ready(ctx)
}

func (e *MultiPVEngine) ready(ctx context.Context) error {
	if err := e.conn.send("isready"); err != nil {
		return err
	}
	if _, err := e.conn.waitFor(ctx, "readyok", nil); err != nil {
		return fmt.Errorf("uci isready: %w", err)
	}
	return nil
}

// Name is the engine's self-reported id, empty if it sent none.
func (e *MultiPVEngine) Name() string { return e.name }

// NewGame tells the engine a fresh game starts.
func (e *MultiPVEngine) NewGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.send("ucinewgame"); err != nil {
		return err
	}
	return e.ready(ctx)
}

// Search runs one MultiPV search. Lines whose first move is not legal in the
// position are reported with an empty move so the caller drops them.
func (e *MultiPVEngine) Search(ctx context.Context, req selection.SearchRequest) (*selection.SearchResult, error) {
	opt, err := chess.FEN(req.FEN)
	if err != nil {
		return nil, fmt.Errorf("search position: %w", err)
	}
	pos := chess.NewGame(opt).Position()
	width := req.MultiPV
	if width < 1 {
		width = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.applyOptions(req.Options, width); err != nil {
		return nil, err
	}
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	if err := e.conn.send("position fen " + req.FEN); err != nil {
		return nil, err
	}
	if err := e.conn.send(goCommand(req)); err != nil {
		return nil, err
	}

	best := make(map[int]infoLine, width)
	collect := func(line string) {
		info, ok := parseInfo(line)
		if !ok || info.Bound || info.Score == nil || info.MultiPV > width {
			return
		}
		if prev, seen := best[info.MultiPV]; seen && prev.Depth > info.Depth {
			return
		}
		best[info.MultiPV] = info
	}

	last, err := e.conn.waitFor(ctx, "bestmove", collect)
	if err != nil {
		if ctx.Err() != nil {
			e.abort()
		}
		return nil, err
	}

	res := &selection.SearchResult{Lines: make([]selection.SearchLine, 0, width)}
	for k := 1; k <= width; k++ {
		info, ok := best[k]
		if !ok {
			continue
		}
		line := selection.SearchLine{Move: legalMove(pos, info.PV[0]), Score: info.Score}
		if line.Move != "" {
			line.PV = info.PV
		}
		res.Lines = append(res.Lines, line)
	}
	if len(res.Lines) == 0 {
		if mv := legalMove(pos, bestMoveOf(last)); mv != "" {
			res.Lines = append(res.Lines, selection.SearchLine{Move: mv})
			res.SingleBest = true
		}
	}
	return res, nil
}

// abort stops a running search and swallows its bestmove so the next search
// starts on a clean stream.
func (e *MultiPVEngine) abort() {
	if err := e.conn.send("stop"); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if _, err := e.conn.waitFor(ctx, "bestmove", nil); err != nil {
		e.logger.Warn("engine did not acknowledge stop", zap.Error(err))
	}
}

// applyOptions sends the requested options plus the resets for options an
// earlier search left behind, so an option-less search runs at the engine's
// defaults.
func (e *MultiPVEngine) applyOptions(opts map[string]any, width int) error {
	plan := planOptions(opts, e.applied, e.defaults)
	plan = append(plan, optionSetting{Name: "MultiPV", Value: fmt.Sprint(width)})
	for _, o := range plan {
		if o.Name == "MultiPV" && e.applied[o.Name] == o.Value {
			continue
		}
		if err := e.conn.send("setoption name " + o.Name + " value " + o.Value); err != nil {
			return err
		}
		e.applied[o.Name] = o.Value
	}
	return nil
}

// Close asks the engine to quit and kills it if it lingers.
func (e *MultiPVEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.conn.send("quit")
	err := e.conn.close()
	if e.cmd == nil || e.cmd.Process == nil {
		return err
	}
	select {
	case <-e.exited:
	case <-time.After(shutdownGrace):
		_ = e.cmd.Process.Kill()
		<-e.exited
	}
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func goCommand(req selection.SearchRequest) string {
	var b strings.Builder
	b.WriteString("go")
	if req.Depth > 0 {
		fmt.Fprintf(&b, " depth %d", req.Depth)
	}
	if req.MoveTime > 0 {
		fmt.Fprintf(&b, " movetime %d", req.MoveTime.Milliseconds())
	}
	if req.Depth <= 0 && req.MoveTime <= 0 {
		fmt.Fprintf(&b, " depth %d", fallbackDepth)
	}
	return b.String()
}

func legalMove(pos *chess.Position, uci string) string {
	if uci == "" {
		return ""
	}
	m, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return ""
	}
	for _, v := range pos.ValidMoves() {
		if v.S1() == m.S1() && v.S2() == m.S2() && v.Promo() == m.Promo() {
			return uci
		}
	}
	return ""
}
