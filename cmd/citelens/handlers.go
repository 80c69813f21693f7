package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/pdewitt/citelens"
	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/viewer"
)

// serveHandler holds the served payload and the shared viewer session.
// Swapping the payload rebuilds the session so its source set always
// matches what /payload reports.
type serveHandler struct {
	engine citelens.Engine

	mu      sync.Mutex
	payload *citelens.Payload
	session *viewer.Session
}

func newServeHandler(engine citelens.Engine, payload *citelens.Payload) *serveHandler {
	return &serveHandler{
		engine:  engine,
		payload: payload,
		session: engine.ViewerFor(payload.Sources),
	}
}

func (h *serveHandler) setPayload(p *citelens.Payload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.Controller().Close()
	h.payload = p
	h.session = h.engine.ViewerFor(p.Sources)
}

func (h *serveHandler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.Controller().Close()
}

func (h *serveHandler) currentSession() *viewer.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// GET /payload
func (h *serveHandler) handlePayload(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	p := h.payload
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

// GET /sources
func (h *serveHandler) handleSources(w http.ResponseWriter, r *http.Request) {
	recs, err := h.engine.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		slog.Error("list sources error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": recs})
}

// GET /sources/{id}/blocks
func (h *serveHandler) handleBlocks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	blocks, err := h.engine.Store().Blocks(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load blocks")
		slog.Error("blocks error", "source_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source_id": id, "blocks": blocks})
}

// GET /sources/{id}/search?q=...&limit=N
func (h *serveHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	results, err := h.engine.Store().SearchBlocks(r.Context(), id, query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		slog.Error("search error", "source_id", id, "query", query, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /sources/{id}/text
func (h *serveHandler) handleText(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := h.engine.Store().SourceText(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load text")
		slog.Error("source text error", "source_id", id, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

// POST /session/click
// The body is a citation in its wire shape.
func (h *serveHandler) handleClick(w http.ResponseWriter, r *http.Request) {
	var cit citation.Citation
	if err := json.NewDecoder(r.Body).Decode(&cit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid citation")
		return
	}
	if cit.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	sess := h.currentSession()
	if err := sess.ClickCitation(r.Context(), cit); err != nil {
		if errors.Is(err, viewer.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}
		writeError(w, http.StatusInternalServerError, "click failed")
		slog.Error("session click error", "source_id", cit.SourceID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stateFor(sess))
}

// POST /session/navigate
func (h *serveHandler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string `json:"source_id"`
		Page     int    `json:"page,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	sess := h.currentSession()
	if err := sess.SelectSource(r.Context(), req.SourceID); err != nil {
		if errors.Is(err, viewer.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}
		writeError(w, http.StatusInternalServerError, "navigate failed")
		slog.Error("session navigate error", "source_id", req.SourceID, "error", err)
		return
	}
	if req.Page > 1 {
		sess.Controller().Navigate(req.SourceID, req.Page)
	}
	writeJSON(w, http.StatusOK, stateFor(sess))
}

// POST /session/clear
func (h *serveHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := h.currentSession()
	sess.Controller().Clear()
	writeJSON(w, http.StatusOK, stateFor(sess))
}

// GET /session/state
func (h *serveHandler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateFor(h.currentSession()))
}

// GET /health
func (h *serveHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionState is the wire shape of a controller snapshot.
type sessionState struct {
	State      string           `json:"state"`
	Citation   *citation.Active `json:"citation,omitempty"`
	SourceID   string           `json:"source_id"`
	Page       int              `json:"page"`
	Generation uint64           `json:"generation"`
}

func stateFor(sess *viewer.Session) sessionState {
	snap := sess.Controller().Snapshot()
	return sessionState{
		State:      stateName(snap.State),
		Citation:   snap.Citation,
		SourceID:   snap.Display.SourceID,
		Page:       snap.Display.Page,
		Generation: snap.Generation,
	}
}

func stateName(s viewer.State) string {
	switch s {
	case viewer.StateActive:
		return "active"
	case viewer.StateFading:
		return "fading"
	default:
		return "idle"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
