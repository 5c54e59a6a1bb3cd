package handlers

import (
	"assetactivity/internal/domain"
	"assetactivity/internal/period"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GET /api/logs/{level}
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	level, err := period.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	keys, err := h.Service.ListLogs(r.Context(), level)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	h.writeOK(w, map[string]any{"level": level, "keys": keys})
}

// GET /api/logs/{level}/{key}
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	level, err := period.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	l, err := h.Service.GetLog(r.Context(), level, chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.writeOK(w, l)
}

// GET /api/logs/{level}/{key}/entities/{id}
func (h *Handler) EntityEvents(w http.ResponseWriter, r *http.Request) {
	level, err := period.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	id, err := domain.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	key := chi.URLParam(r, "key")

	evs, err := h.Service.EntityEvents(r.Context(), level, key, id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.writeOK(w, map[string]any{"entity": id, "events": evs})
}
