package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chess-persona/selection"
)

const restartTimeout = 10 * time.Second

// Pool spreads searches over several engine processes. Each search holds one
// engine for its duration. A pool built by OpenPool replaces an engine whose
// process died during a search.
type Pool struct {
	free chan Engine

	mu  sync.Mutex
	all []Engine

	open   func(context.Context) (Engine, error)
	logger *zap.Logger
}

func NewPool(engines ...Engine) *Pool {
	p := &Pool{free: make(chan Engine, len(engines)), all: engines, logger: zap.NewNop()}
	for _, e := range engines {
		p.free <- e
	}
	return p
}

// OpenPool starts size engines of the same binary and mode.
func OpenPool(ctx context.Context, path, mode string, size int, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	engines := make([]Engine, 0, size)
	for i := 0; i < size; i++ {
		e, err := Open(ctx, path, mode, logger)
		if err != nil {
			for _, started := range engines {
				_ = started.Close()
			}
			return nil, err
		}
		engines = append(engines, e)
	}
	p := NewPool(engines...)
	p.logger = logger.Named("pool")
	p.open = func(ctx context.Context) (Engine, error) { return Open(ctx, path, mode, logger) }
	return p, nil
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Search runs req on the next free engine. When the engine process is gone
// the error is still returned, and the slot gets a fresh process first.
func (p *Pool) Search(ctx context.Context, req selection.SearchRequest) (*selection.SearchResult, error) {
	var e Engine
	select {
	case e = <-p.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res, err := e.Search(ctx, req)
	if err != nil && engineDead(err) {
		e = p.replace(e, err)
	}
	p.free <- e
	return res, err
}

// replace closes a dead engine and starts its successor. If the restart
// fails the dead engine keeps the slot and the next search tries again.
func (p *Pool) replace(dead Engine, cause error) Engine {
	if p.open == nil {
		return dead
	}
	p.logger.Warn("engine process died, restarting", zap.Error(cause))
	_ = dead.Close()

	ctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
	defer cancel()
	fresh, err := p.open(ctx)
	if err != nil {
		p.logger.Error("engine restart failed", zap.Error(err))
		return dead
	}

	p.mu.Lock()
	for i, e := range p.all {
		if e == dead {
			p.all[i] = fresh
		}
	}
	p.mu.Unlock()
	return fresh
}

func engineDead(err error) bool {
	return errors.Is(err, ErrEngineExited) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE)
}

// Close shuts down every engine. It must not race with Search.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, e := range p.all {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
