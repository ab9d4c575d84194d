package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chess-persona/match"
	"chess-persona/persona"
	"chess-persona/rules"
)

type playersRequest struct {
	UserName     string `json:"user_name"`
	UserSide     string `json:"user_side"`
	OpponentName string `json:"opponent_name"`
}

func (p playersRequest) players() match.Players {
	return match.Players{
		UserName:     p.UserName,
		OpponentName: p.OpponentName,
		UserSide:     rules.Side(strings.ToLower(strings.TrimSpace(p.UserSide))),
	}
}

type engineRequest struct {
	EnginePersona  string   `json:"engine_persona"`
	OpponentPreset string   `json:"opponent_preset"`
	EngineTime     *float64 `json:"engine_time"`
	EngineSkill    *int     `json:"engine_skill"`
	RNGSeed        *int64   `json:"rng_seed"`
}

type moveRequest struct {
	playersRequest
	engineRequest
	UCI         string `json:"uci"`
	EngineReply bool   `json:"engine_reply"`
}

type fenRequest struct {
	FEN       string   `json:"fen"`
	TimeLimit *float64 `json:"time_limit"`
}

type resignRequest struct {
	playersRequest
	ResignedSide string `json:"resigned_side"`
}

var errUnknownPreset = errors.New("unknown opponent preset")

// engineMove turns the wire request into a session request. A preset fills
// in the persona and engine time unless they are given explicitly.
func (h *HTTPHandler) engineMove(req engineRequest) (match.EngineMoveRequest, error) {
	out := match.EngineMoveRequest{
		Persona:    req.EnginePersona,
		EngineTime: seconds(req.EngineTime, h.engine.DefaultEngineTime),
		Skill:      req.EngineSkill,
		Seed:       req.RNGSeed,
	}
	if req.OpponentPreset != "" {
		p, ok := persona.LookupPreset(req.OpponentPreset)
		if !ok {
			return out, fmt.Errorf("%w: %q", errUnknownPreset, req.OpponentPreset)
		}
		if out.Persona == "" {
			out.Persona = p.Persona
		}
		if req.EngineTime == nil && p.EngineTime > 0 {
			out.EngineTime = p.EngineTime
		}
	}
	return out, nil
}

func (h *HTTPHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.IDs()})
	case http.MethodPost:
		var req playersRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		s := h.sessions.Create()
		s.SetPlayers(req.players())
		writeJSON(w, http.StatusCreated, map[string]any{"session": s.State()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *HTTPHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	s, err := h.sessions.Get(parts[0])
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"session": s.State()})
		case http.MethodDelete:
			h.sessions.Remove(s.ID())
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
		return
	}

	action := parts[1]
	if action == "pgn" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		w.Header().Set("Content-Type", "application/x-chess-pgn")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "game-"+s.ID()+".pgn"))
		_, _ = w.Write([]byte(s.PGN()))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	switch action {
	case "move":
		h.handleMove(w, r, s)
	case "engine_move":
		h.handleEngineMove(w, r, s)
	case "reset":
		writeJSON(w, http.StatusOK, map[string]any{"session": s.Reset()})
	case "set_fen":
		var req fenRequest
		if err := decodeJSON(r, &req); err != nil || req.FEN == "" {
			writeError(w, http.StatusBadRequest, "invalid_body", "fen is required")
			return
		}
		st, err := s.SetFEN(req.FEN)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": st})
	case "analyze":
		var req fenRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		a, err := s.Analyze(r.Context(), req.FEN, seconds(req.TimeLimit, match.DefaultAnalyzeTime))
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analysis": a})
	case "resign":
		h.handleResign(w, r, s)
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

func (h *HTTPHandler) handleMove(w http.ResponseWriter, r *http.Request, s *match.Session) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil || req.UCI == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "uci is required")
		return
	}
	s.SetPlayers(req.players())
	st, err := s.PlayerMove(req.UCI)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	resp := map[string]any{"move": req.UCI, "session": st}
	if req.EngineReply && st.Status == match.StatusActive {
		em, err := h.engineMove(req.engineRequest)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_preset", err.Error())
			return
		}
		res, err := s.EngineMove(r.Context(), em)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		resp["engine_reply"] = res
		resp["session"] = res.State
		st = res.State
	}
	if st.Status == match.StatusEnded {
		resp["pgn"] = s.PGN()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleEngineMove(w http.ResponseWriter, r *http.Request, s *match.Session) {
	var req engineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	em, err := h.engineMove(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_preset", err.Error())
		return
	}
	res, err := s.EngineMove(r.Context(), em)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	resp := map[string]any{"engine_reply": res, "session": res.State}
	if res.State.Status == match.StatusEnded {
		resp["pgn"] = s.PGN()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleResign(w http.ResponseWriter, r *http.Request, s *match.Session) {
	var req resignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	side := rules.Side(strings.ToLower(strings.TrimSpace(req.ResignedSide)))
	if side != rules.White && side != rules.Black {
		writeError(w, http.StatusBadRequest, "invalid_side", "resigned_side must be white or black")
		return
	}
	s.SetPlayers(req.players())
	st, err := s.Resign(side)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": st, "pgn": s.PGN()})
}
