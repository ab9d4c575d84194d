package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chess-persona/apps/server/internal/api"
	"chess-persona/apps/server/internal/auth"
	"chess-persona/apps/server/internal/config"
	"chess-persona/apps/server/internal/gateway"
	"chess-persona/apps/server/internal/overridestore"
	"chess-persona/engine"
	"chess-persona/match"
	"chess-persona/persona"
	"chess-persona/selection"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.Logging.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overrides, storeMode, err := overridestore.New(ctx, cfg.Overrides, logger)
	if err != nil {
		logger.Fatal("init override store", zap.Error(err))
	}
	defer overrides.Close()

	personas := persona.NewDefaultStore(overrides, logger)
	if err := personas.Load(ctx); err != nil {
		logger.Fatal("load persona overrides", zap.String("store", storeMode), zap.Error(err))
	}

	guard, err := auth.NewAdminGuard(cfg.Admin.PasswordHash)
	if err != nil {
		logger.Fatal("invalid ADMIN_PASSWORD_HASH", zap.Error(err))
	}
	if guard.Open() {
		logger.Warn("no admin password hash configured, persona overrides are writable by anyone")
	}

	info := api.EngineInfo{
		Path:              cfg.Engine.Path,
		Mode:              cfg.Engine.Mode,
		PoolSize:          cfg.Engine.PoolSize,
		DefaultEngineTime: cfg.Engine.EngineTime,
	}
	var searcher selection.Searcher
	pool, err := engine.OpenPool(ctx, cfg.Engine.Path, cfg.Engine.Mode, cfg.Engine.PoolSize, logger)
	if err != nil {
		logger.Warn("engine unavailable, engine moves are disabled",
			zap.String("path", cfg.Engine.Path), zap.Error(err))
	} else {
		defer pool.Close()
		searcher = pool
		info.Detected = true
	}

	sessions := match.NewManager(personas, searcher, logger)
	handler := api.NewHTTPHandler(personas, sessions, api.Options{
		Guard:            guard,
		Engine:           info,
		BatchConcurrency: cfg.Sessions.BatchConcurrent,
		Logger:           logger,
	})
	gw := gateway.New(sessions, cfg.Engine.EngineTime, logger)
	defer gw.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	handler.RegisterRoutes(mux)

	if cfg.Sessions.MaxIdle > 0 {
		go pruneIdle(ctx, sessions, cfg.Sessions.MaxIdle, logger)
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting",
		zap.String("addr", cfg.ListenAddr),
		zap.String("override_store", storeMode),
		zap.String("engine_mode", cfg.Engine.Mode),
		zap.Bool("engine", info.Detected))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(debug bool) *zap.Logger {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func pruneIdle(ctx context.Context, sessions *match.Manager, maxIdle time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(maxIdle); n > 0 {
				logger.Info("pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}
