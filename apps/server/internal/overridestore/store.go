// Package overridestore persists the persona override document. Every
// backend stores the whole document as one blob and satisfies
// persona.Persister.
package overridestore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chess-persona/apps/server/internal/config"
	"chess-persona/persona"
)

// Store is a persona.Persister that owns external resources.
type Store interface {
	persona.Persister
	Close() error
}

// Memory keeps the document in process. It is the store for tests and for
// servers that do not need overrides to survive a restart.
type Memory struct {
	mu  sync.Mutex
	doc []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.doc...), nil
}

func (m *Memory) Save(_ context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append([]byte(nil), doc...)
	return nil
}

func (m *Memory) Close() error { return nil }

// New opens the backend named by cfg.Store and returns it with its mode name.
func New(ctx context.Context, cfg config.OverrideConfig, logger *zap.Logger) (Store, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := cfg.Store
	var (
		s   Store
		err error
	)
	switch mode {
	case config.StoreMemory:
		s = NewMemory()
	case config.StoreFile:
		s, err = NewFile(cfg.File)
	case config.StoreSQLite:
		s, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		s, err = NewPostgres(ctx, cfg.DatabaseDSN)
	case config.StoreRedis:
		s, err = NewRedis(ctx, cfg.RedisAddr, cfg.RedisKey)
	default:
		return nil, mode, fmt.Errorf("invalid override store %q", mode)
	}
	if err != nil {
		return nil, mode, fmt.Errorf("open %s override store: %w", mode, err)
	}
	logger.Named("overrides").Info("override store ready", zap.String("mode", mode))
	return s, mode, nil
}
