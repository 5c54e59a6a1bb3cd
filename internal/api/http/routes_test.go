package http

import (
	"assetactivity/internal/api/http/handlers"
	"assetactivity/internal/api/http/mw"
	"assetactivity/internal/classifier"
	"assetactivity/internal/config"
	"assetactivity/internal/guard"
	"assetactivity/internal/security"
	"assetactivity/internal/service"
	stores "assetactivity/internal/stores/redis"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

// ========== Test Helpers ==========

func createTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func writeKeys(t *testing.T) *config.JWTConfig {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")

	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600))

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	return &config.JWTConfig{
		Enabled:        true,
		PublicKeyPath:  pubPath,
		PrivateKeyPath: privPath,
		Audience:       "activity-api",
		Issuer:         "activity-dev",
	}
}

// full router over miniredis with auth and rate limiting on
func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	lg := createTestLogger()
	mr := miniredis.RunT(t)

	client := &stores.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })

	store, err := stores.NewArtifactStore(lg, client, "e2e:")
	require.NoError(t, err)

	detector, err := classifier.NewDetector(lg, &config.ClassifierConfig{EntityCount: 100})
	require.NoError(t, err)

	g := guard.NewMemoryGuard(lg, time.Minute, 0)
	t.Cleanup(g.Close)

	svc, err := service.NewActivityService(service.Deps{
		Log:      lg,
		Store:    store,
		Detector: detector,
		Guard:    g,
	})
	require.NoError(t, err)

	jwtCfg := writeKeys(t)
	verifier, err := security.NewRS256Verifier(jwtCfg)
	require.NoError(t, err)
	signer, err := security.NewRS256Signer(jwtCfg)
	require.NoError(t, err)

	h := handlers.NewHandler(lg, svc, signer, 10*time.Second)
	return BuildRouter(h, Middlewares{
		Log: mw.NewLogging(lg),
		RateLimit: mw.NewRateLimit(lg, client.Client, config.RateLimitConfig{
			Enabled: true,
			ByIP:    config.RateBucketConfig{Burst: 100, RefillPerSec: 50},
		}),
		JWT:  mw.NewJWTMiddleware(verifier),
		CORS: mw.NewCORS(&config.CORSConfig{Enabled: true, Origins: []string{"*"}}),
	})
}

func call(t *testing.T, h http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var env struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	require.Equal(t, "ok", env.Status)
	return env.Data
}

func mintToken(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := call(t, h, http.MethodPost, "/api/dev/token", "", []byte(`{"sub":"ops","ttl":"10m"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := data(t, rec)
	assert.Equal(t, "Bearer", d["token_type"])
	assert.EqualValues(t, 600, d["expires_in"])
	return d["token"].(string)
}

// ========== Router Tests ==========

func TestRouter_OpenEndpoints(t *testing.T) {
	h := setupRouter(t)

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/readiness", "", nil).Code)

	rec := call(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ProtectedRequiresToken(t *testing.T) {
	h := setupRouter(t)

	rec := call(t, h, http.MethodGet, "/api/logs/day", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/logs/day", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_DevTokenRejectsBadTTL(t *testing.T) {
	h := setupRouter(t)

	rec := call(t, h, http.MethodPost, "/api/dev/token", "", []byte(`{"ttl":"-1h"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_IngestBuildQuery(t *testing.T) {
	h := setupRouter(t)
	token := mintToken(t, h)

	snaps := map[string]string{
		"2024-03-10T00": `{"taken_at":"2024-03-10T00:00:00Z","tokens":{"42":{"owner":"alice"},"7":{"owner":"carol","daodao_staked":false}}}`,
		"2024-03-10T01": `{"taken_at":"2024-03-10T01:00:00Z","tokens":{"42":{"owner":"bob"},"7":{"owner":"carol","daodao_staked":true}}}`,
	}
	for hour, body := range snaps {
		rec := call(t, h, http.MethodPut, "/api/snapshots/"+hour, token, []byte(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, 2, data(t, rec)["records"])
	}

	rec := call(t, h, http.MethodPut, "/api/snapshots/2024-03-10T02", token, []byte(`{"tokens":`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// daily build over the stored hours
	rec = call(t, h, http.MethodPost, "/api/daily/2024-03-10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, rec)
	assert.EqualValues(t, 2, d["entities"])
	summary := d["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["transfers"])
	assert.EqualValues(t, 1, summary["daodao_stakes"])
	assert.EqualValues(t, 2, summary["total_events"])

	rec = call(t, h, http.MethodGet, "/api/logs/day", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2024-03-10"}, data(t, rec)["keys"])

	rec = call(t, h, http.MethodGet, "/api/logs/day/2024-03-10/entities/42", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"status":"ok","data":{"entity":42,"events":[{"type":"transfer","from":"alice","to":"bob","hour":1}]}}`,
		rec.Body.String())

	// week rollup from the single day
	rec = call(t, h, http.MethodPost, "/api/rollup/week/2024-W10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, data(t, rec)["summary"].(map[string]any)["total_events"])

	// no daily logs in this month yet
	rec = call(t, h, http.MethodPost, "/api/rollup/month/2024-04", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/logs/year/2024", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/rollup/hour/2024-03-10T00", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/daily/2024-03-10", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
