package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"chess-persona/persona"
)

func (h *HTTPHandler) handlePersonaList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	out := make(map[string]persona.Profile)
	for _, name := range h.store.Names() {
		p, err := h.store.Resolve(name)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		out[name] = p
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": out})
}

// handlePersona serves /api/personas/{name}, /api/personas/{name}/reset and
// the collection actions reset_all, export and import.
func (h *HTTPHandler) handlePersona(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/personas/"), "/")
	if path == "" {
		h.handlePersonaList(w, r)
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] == "reset_all":
		h.requirePost(w, r, h.handleResetAll)
	case len(parts) == 1 && parts[0] == "export":
		h.handleExport(w, r)
	case len(parts) == 1 && parts[0] == "import":
		h.requirePost(w, r, h.handleImport)
	case len(parts) == 1:
		name := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.handleGetPersona(w, name)
		case http.MethodPost, http.MethodPut:
			h.guarded(w, r, func(w http.ResponseWriter, r *http.Request) {
				h.handleSetPersona(w, r, name)
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case len(parts) == 2 && parts[1] == "reset":
		name := parts[0]
		h.requirePost(w, r, func(w http.ResponseWriter, r *http.Request) {
			if err := h.store.ResetOverride(r.Context(), name); err != nil {
				h.writeFailure(w, err)
				return
			}
			h.handleGetPersona(w, name)
		})
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

// requirePost checks the method and the admin guard before running next.
func (h *HTTPHandler) requirePost(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	h.guarded(w, r, next)
}

type personaResponse struct {
	Name     string            `json:"name"`
	Profile  persona.Profile   `json:"profile"`
	Override *persona.Override `json:"override,omitempty"`
}

func (h *HTTPHandler) handleGetPersona(w http.ResponseWriter, name string) {
	p, err := h.store.Resolve(name)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	resp := personaResponse{Name: persona.NormalizeName(name), Profile: p}
	if o, ok := h.store.Override(name); ok {
		resp.Override = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleSetPersona(w http.ResponseWriter, r *http.Request, name string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := h.store.SetOverrideJSON(r.Context(), name, body); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.handleGetPersona(w, name)
}

func (h *HTTPHandler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ResetAll(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	doc, err := h.store.ExportJSON()
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": json.RawMessage(doc)})
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := h.store.ImportJSON(r.Context(), body); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(h.store.ExportOverrides())})
}
