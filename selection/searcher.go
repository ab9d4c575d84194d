package selection

import (
	"context"
	"time"
)

// Position is the read-only view of the rules engine the pipeline needs.
type Position interface {
	FEN() string
	NonKingPieceCount() int
}

// SearchRequest is what the pipeline asks of the search engine.
type SearchRequest struct {
	FEN      string
	Depth    int           // 0 = no depth limit
	MultiPV  int           // candidate width, >= 1
	MoveTime time.Duration // 0 = no time limit
	Options  map[string]any
}

// SearchLine is one ranked line as reported by the engine. Move is empty and
// Score nil when the engine did not report them. PV, when present, starts
// with Move.
type SearchLine struct {
	Move  string
	Score *Score
	PV    []string
}

// SearchResult is either a ranked list or, with SingleBest set, the one best
// line of an engine that cannot rank alternatives.
type SearchResult struct {
	Lines      []SearchLine
	SingleBest bool
}

// Searcher is the external search-engine collaborator.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, req SearchRequest) (*SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	return f(ctx, req)
}
