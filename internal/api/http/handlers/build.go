package handlers

import (
	"assetactivity/internal/domain"
	"assetactivity/internal/period"
	"assetactivity/pkg/httputil"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type dailyRequest struct {
	Snapshots []string `json:"snapshots"`
}

// result of a build; the log itself is fetched through /api/logs
type buildResponse struct {
	Level    string         `json:"level"`
	Key      string         `json:"key"`
	Summary  domain.Summary `json:"summary"`
	Entities int            `json:"entities"`
}

func newBuildResponse(level period.Level, key string, l *domain.EventLog) buildResponse {
	return buildResponse{
		Level:    string(level),
		Key:      key,
		Summary:  l.Summary,
		Entities: len(l.ActivityLog),
	}
}

// POST /api/daily/{day}
func (h *Handler) BuildDaily(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")

	var req dailyRequest
	if err := httputil.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		if werr := httputil.Error(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil); werr != nil {
			h.Log.Errorf("BuildDaily handler error: %s", werr.Error())
		}
		return
	}

	ctx, cancel := h.buildContext(r)
	defer cancel()

	l, err := h.Service.BuildDaily(ctx, day, req.Snapshots)
	if err != nil {
		h.writeError(w, r, err, l)
		return
	}

	h.writeOK(w, newBuildResponse(period.Day, day, l))
}

// POST /api/rollup/{level}/{key}
func (h *Handler) Rollup(w http.ResponseWriter, r *http.Request) {
	level, err := period.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	key := chi.URLParam(r, "key")

	ctx, cancel := h.buildContext(r)
	defer cancel()

	l, err := h.Service.Rollup(ctx, level, key)
	if err != nil {
		h.writeError(w, r, err, l)
		return
	}

	h.writeOK(w, newBuildResponse(level, key, l))
}

// PUT /api/snapshots/{hour}, body is the raw capture document
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	hour := chi.URLParam(r, "hour")

	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*maxBodyBytes))
	if err != nil {
		if werr := httputil.Error(w, r, http.StatusBadRequest, "bad_request", "failed to read body", nil); werr != nil {
			h.Log.Errorf("PutSnapshot handler error: %s", werr.Error())
		}
		return
	}

	st, err := h.Service.StoreSnapshot(r.Context(), hour, raw)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.writeOK(w, map[string]any{
		"key":      hour,
		"taken_at": st.TakenAt,
		"records":  st.Records,
		"skipped":  st.Skipped,
		"no_owner": st.NoOwner,
	})
}
