package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
	"go.uber.org/zap"

	"chess-persona/selection"
)

// BestMoveEngine asks a UCI engine for its single best move. It cannot rank
// alternatives, so results are always SingleBest and the selector falls back
// to deterministic play.
type BestMoveEngine struct {
	mu       sync.Mutex
	eng      *uci.Engine
	applied  map[string]string
	defaults map[string]string
	logger   *zap.Logger
}

// StartBestMove launches the engine at path (defaults to "stockfish").
func StartBestMove(path string, logger *zap.Logger) (*BestMoveEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "stockfish"
	}
	eng, err := uci.New(path)
	if err != nil {
		return nil, fmt.Errorf("start engine %q: %w", path, err)
	}
	if err := eng.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		eng.Close()
		return nil, fmt.Errorf("uci handshake: %w", err)
	}
	defaults := make(map[string]string)
	for name, o := range eng.Options() {
		if o.Default != "" {
			defaults[strings.ToLower(name)] = o.Default
		}
	}
	return &BestMoveEngine{
		eng:      eng,
		applied:  make(map[string]string),
		defaults: defaults,
		logger:   logger.Named("bestmove"),
	}, nil
}

// Search ignores req.MultiPV. Context cancellation is checked before the
// search starts; a running search ends at its own depth or time limit.
func (e *BestMoveEngine) Search(ctx context.Context, req selection.SearchRequest) (*selection.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opt, err := chess.FEN(req.FEN)
	if err != nil {
		return nil, fmt.Errorf("search position: %w", err)
	}
	pos := chess.NewGame(opt).Position()

	e.mu.Lock()
	defer e.mu.Unlock()

	plan := planOptions(req.Options, e.applied, e.defaults)
	cmds := make([]uci.Cmd, 0, len(plan)+2)
	for _, o := range plan {
		cmds = append(cmds, uci.CmdSetOption{Name: o.Name, Value: o.Value})
	}
	cmds = append(cmds,
		uci.CmdPosition{Position: pos},
		uci.CmdGo{Depth: req.Depth, MoveTime: req.MoveTime},
	)
	for _, o := range plan {
		e.applied[o.Name] = o.Value
	}
	if err := e.eng.Run(cmds...); err != nil {
		return nil, fmt.Errorf("uci search: %w", err)
	}
	results := e.eng.SearchResults()
	if results.BestMove == nil {
		return nil, errors.New("engine returned no move")
	}

	line := selection.SearchLine{Move: results.BestMove.String()}
	for _, m := range results.Info.PV {
		line.PV = append(line.PV, m.String())
	}
	score := results.Info.Score
	switch {
	case score.Mate != 0:
		line.Score = selection.Mate(score.Mate)
	case len(results.Info.PV) > 0:
		line.Score = selection.Centipawns(score.CP)
	}
	return &selection.SearchResult{Lines: []selection.SearchLine{line}, SingleBest: true}, nil
}

func (e *BestMoveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eng.Close()
}
