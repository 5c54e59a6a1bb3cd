package handlers

import (
	"assetactivity/internal/capture"
	"assetactivity/internal/domain"
	"assetactivity/internal/guard"
	"assetactivity/internal/period"
	"assetactivity/internal/security"
	"assetactivity/internal/service"
	"assetactivity/pkg/httputil"
	"context"
	"errors"
	"net/http"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// Use-cases the API exposes; implemented by service.ActivityService
type ActivityAPI interface {
	StoreSnapshot(ctx context.Context, hourKey string, raw []byte) (capture.Stats, error)
	BuildDaily(ctx context.Context, day string, snapshotKeys []string) (*domain.EventLog, error)
	Rollup(ctx context.Context, level period.Level, key string) (*domain.EventLog, error)
	GetLog(ctx context.Context, level period.Level, key string) (*domain.EventLog, error)
	ListLogs(ctx context.Context, level period.Level) ([]string, error)
	EntityEvents(ctx context.Context, level period.Level, key string, id domain.EntityID) (domain.Events, error)
	CheckDependency(ctx context.Context) error
}

var _ ActivityAPI = (*service.ActivityService)(nil)

type Handler struct {
	Log          logger.Logger
	Service      ActivityAPI
	Signer       *security.RS256Signer // nil unless a dev signing key is configured
	BuildTimeout time.Duration         // bounds daily builds and rollups, 0 -> request context only
}

func NewHandler(log logger.Logger, svc ActivityAPI, signer *security.RS256Signer, buildTimeout time.Duration) *Handler {
	if svc == nil {
		panic("activity service cannot be nil")
	}

	return &Handler{Log: log, Service: svc, Signer: signer, BuildTimeout: buildTimeout}
}

func (h *Handler) buildContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.BuildTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.BuildTimeout)
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, partial *domain.EventLog) {
	status, code := http.StatusInternalServerError, "internal"
	var details any

	switch {
	case errors.Is(err, period.ErrUnknownLevel),
		errors.Is(err, period.ErrInvalidKey),
		errors.Is(err, period.ErrUnsupportedRollup),
		errors.Is(err, domain.ErrInvalidEntityID),
		errors.Is(err, service.ErrEntityOutOfRange):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientData):
		status, code = http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, domain.ErrMalformedInput):
		status, code = http.StatusUnprocessableEntity, "malformed_input"
	case errors.Is(err, guard.ErrHeld):
		status, code = http.StatusConflict, "period_busy"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrWriteFailure):
		// the computed log is handed back so the caller can retry the write
		status, code = http.StatusBadGateway, "write_failure"
		if partial != nil {
			details = map[string]any{"log": partial}
		}
	}

	if status >= http.StatusInternalServerError {
		h.Log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		h.Log.Warnf("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}

	if werr := httputil.Error(w, r, status, code, err.Error(), details); werr != nil {
		h.Log.Errorf("Write error response failed: %v", werr)
	}
}

func (h *Handler) writeOK(w http.ResponseWriter, body any) {
	if err := httputil.JSON(w, http.StatusOK, body, nil); err != nil {
		h.Log.Errorf("Write response failed: %v", err)
	}
}
