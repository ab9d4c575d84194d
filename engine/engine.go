// Package engine connects the selector to an external UCI search engine.
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chess-persona/selection"
)

const (
	ModeMultiPV  = "multipv"
	ModeBestMove = "bestmove"
)

// Engine is a Searcher backed by a process that must be closed.
type Engine interface {
	selection.Searcher
	Close() error
}

// Open starts the engine binary in the requested mode. An empty mode means
// multipv.
func Open(ctx context.Context, path, mode string, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeMultiPV:
		return StartMultiPV(ctx, path, logger)
	case ModeBestMove:
		return StartBestMove(path, logger)
	default:
		return nil, fmt.Errorf("unsupported engine mode: %s", mode)
	}
}
