package api

import (
	"net/http"

	"go.uber.org/zap"

	"chess-persona/match"
)

// maxBatchGames caps one /api/simulate_batch request.
const maxBatchGames = 200

type simulateRequest struct {
	WhitePersona string   `json:"white_persona"`
	BlackPersona string   `json:"black_persona"`
	EngineTime   *float64 `json:"engine_time"`
	MaxMoves     int      `json:"max_moves"`
	// Seed is accepted under both names used by older clients.
	RNGSeed *int64 `json:"rng_seed"`
	Seed    *int64 `json:"seed"`
	Count   int    `json:"count"`
}

func (req simulateRequest) config(h *HTTPHandler) match.SimulationConfig {
	seed := req.RNGSeed
	if seed == nil {
		seed = req.Seed
	}
	return match.SimulationConfig{
		White:      req.WhitePersona,
		Black:      req.BlackPersona,
		EngineTime: seconds(req.EngineTime, h.engine.DefaultEngineTime),
		MaxMoves:   req.MaxMoves,
		Seed:       seed,
	}
}

func (h *HTTPHandler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	res, err := h.sessions.Simulate(r.Context(), req.config(h))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleSimulateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Count > maxBatchGames {
		writeError(w, http.StatusBadRequest, "too_many_games", "count exceeds batch limit")
		return
	}
	results, summary, err := h.sessions.RunBatch(r.Context(), match.BatchConfig{
		SimulationConfig: req.config(h),
		Count:            req.Count,
		Concurrency:      h.batchConcurrency,
	})
	if err != nil {
		if match.IsCanceled(err) {
			h.logger.Info("batch cancelled by client", zap.Error(err))
		}
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": results, "summary": summary})
}
