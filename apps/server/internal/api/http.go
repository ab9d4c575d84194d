// Package api exposes personas, game sessions and simulations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chess-persona/apps/server/internal/auth"
	"chess-persona/match"
	"chess-persona/persona"
	"chess-persona/rules"
)

const maxBodyBytes = 1 << 20

// EngineInfo describes the configured search engine for /api/engine_info.
type EngineInfo struct {
	Path              string        `json:"engine_path,omitempty"`
	Mode              string        `json:"mode"`
	Detected          bool          `json:"engine_detected"`
	Name              string        `json:"name,omitempty"`
	PoolSize          int           `json:"pool_size"`
	DefaultEngineTime time.Duration `json:"-"`
}

type HTTPHandler struct {
	store    *persona.Store
	sessions *match.Manager
	guard    *auth.AdminGuard
	engine   EngineInfo
	// batchConcurrency bounds parallel games in /api/simulate_batch.
	batchConcurrency int
	logger           *zap.Logger
}

type Options struct {
	Guard            *auth.AdminGuard
	Engine           EngineInfo
	BatchConcurrency int
	Logger           *zap.Logger
}

func NewHTTPHandler(store *persona.Store, sessions *match.Manager, opts Options) *HTTPHandler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if opts.Engine.DefaultEngineTime <= 0 {
		opts.Engine.DefaultEngineTime = persona.DefaultEngineTime
	}
	return &HTTPHandler{
		store:            store,
		sessions:         sessions,
		guard:            opts.Guard,
		engine:           opts.Engine,
		batchConcurrency: opts.BatchConcurrency,
		logger:           logger.Named("api"),
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/engine_info", h.handleEngineInfo)
	mux.HandleFunc("/api/presets", h.handlePresets)
	mux.HandleFunc("/api/personas", h.handlePersonaList)
	mux.HandleFunc("/api/personas/", h.handlePersona)
	mux.HandleFunc("/api/sessions", h.handleSessions)
	mux.HandleFunc("/api/sessions/", h.handleSession)
	mux.HandleFunc("/api/simulate", h.handleSimulate)
	mux.HandleFunc("/api/simulate_batch", h.handleSimulateBatch)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": len(h.sessions.IDs()),
		"engine":   h.engine.Detected,
	})
}

func (h *HTTPHandler) handleEngineInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engine": h.engine,
		"defaults": map[string]any{
			"engine_time": h.engine.DefaultEngineTime.Seconds(),
			"personas":    h.store.Names(),
		},
	})
}

func (h *HTTPHandler) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	type presetView struct {
		persona.Preset
		EngineTime float64 `json:"engine_time,omitempty"`
	}
	presets := persona.Presets()
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetView{Preset: p, EngineTime: p.EngineTime.Seconds()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": out})
}

// guarded runs next only when the admin guard accepts the request.
func (h *HTTPHandler) guarded(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	h.guard.Require(next, func(w http.ResponseWriter, err error) {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	})(w, r)
}

// writeFailure maps domain errors onto HTTP status codes.
func (h *HTTPHandler) writeFailure(w http.ResponseWriter, err error) {
	var invalid *persona.InvalidOverrideError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_override", err.Error())
	case errors.Is(err, persona.ErrUnknownPersona):
		writeError(w, http.StatusNotFound, "unknown_persona", err.Error())
	case errors.Is(err, match.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, rules.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, "illegal_move", err.Error())
	case errors.Is(err, rules.ErrInvalidFEN):
		writeError(w, http.StatusBadRequest, "invalid_fen", err.Error())
	case errors.Is(err, rules.ErrGameOver):
		writeError(w, http.StatusConflict, "game_over", err.Error())
	case errors.Is(err, match.ErrNoEngine):
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable", err.Error())
	case errors.Is(err, match.ErrEngineFailed):
		writeError(w, http.StatusBadGateway, "engine_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// seconds converts an optional JSON seconds value to a duration.
func seconds(v *float64, def time.Duration) time.Duration {
	if v == nil || *v <= 0 {
		return def
	}
	return time.Duration(*v * float64(time.Second))
}
