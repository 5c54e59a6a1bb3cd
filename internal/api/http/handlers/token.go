package handlers

import (
	"assetactivity/pkg/httputil"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

type tokenRequest struct {
	Subject string `json:"sub"`
	TTL     string `json:"ttl"` // Go duration, default 1h
}

// POST /api/dev/token mints a bearer token with the dev signing key
func (h *Handler) DevToken(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		if err := httputil.Error(w, r, http.StatusNotFound, "not_found", "token signer is not configured", nil); err != nil {
			h.Log.Errorf("DevToken handler error: %s", err.Error())
		}
		return
	}

	var req tokenRequest
	if err := httputil.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		if werr := httputil.Error(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil); werr != nil {
			h.Log.Errorf("DevToken handler error: %s", werr.Error())
		}
		return
	}
	if req.Subject == "" {
		req.Subject = "dev"
	}

	ttl := time.Hour
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			if werr := httputil.Error(w, r, http.StatusBadRequest, "bad_request", "ttl must be a positive duration", nil); werr != nil {
				h.Log.Errorf("DevToken handler error: %s", werr.Error())
			}
			return
		}
		ttl = d
	}

	var jti [8]byte
	_, _ = rand.Read(jti[:])

	token, err := h.Signer.Mint(req.Subject, ttl, hex.EncodeToString(jti[:]))
	if err != nil {
		h.Log.Errorf("Failed to mint dev token: %v", err)
		if werr := httputil.Error(w, r, http.StatusInternalServerError, "internal", "failed to mint token", nil); werr != nil {
			h.Log.Errorf("DevToken handler error: %s", werr.Error())
		}
		return
	}

	h.writeOK(w, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(ttl.Seconds()),
	})
}
