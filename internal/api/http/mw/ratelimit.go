package mw

import (
	"assetactivity/internal/config"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// Token bucket per client IP, and per JWT subject when the request is authenticated.
// Trigger endpoints recompute whole periods, so they are worth protecting.
type RateLimitMiddleware struct {
	log logger.Logger
	rdb redis.Scripter
	cfg config.RateLimitConfig
}

func NewRateLimit(log logger.Logger, rdb redis.Scripter, cfg config.RateLimitConfig) *RateLimitMiddleware {
	// sane defaults
	if cfg.ByJWT.TTL == 0 {
		cfg.ByJWT.TTL = 2 * time.Minute
	}
	if cfg.ByIP.TTL == 0 {
		cfg.ByIP.TTL = 2 * time.Minute
	}
	if cfg.ByIP.Burst <= 0 {
		cfg.ByIP.Burst = 10
	}
	if cfg.ByIP.RefillPerSec <= 0 {
		cfg.ByIP.RefillPerSec = 5
	}
	if cfg.ByJWT.Burst <= 0 {
		cfg.ByJWT.Burst = 40
	}
	if cfg.ByJWT.RefillPerSec <= 0 {
		cfg.ByJWT.RefillPerSec = 20
	}
	return &RateLimitMiddleware{log: log, rdb: rdb, cfg: cfg}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()

		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		okIP := m.allow(ctx, "rl:ip:"+ip, now, m.cfg.ByIP)

		okJWT := true
		if sub := SubjectFromContext(ctx); sub != "" {
			okJWT = m.allow(ctx, "rl:jwt:"+sub, now, m.cfg.ByJWT)
		}

		if !(okIP && okJWT) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- redis token-bucket (Lua) for atomic and one query ---
var luaTokenBucket = redis.NewScript(`
-- KEYS[1] = key
-- ARGV[1] = now_ms
-- ARGV[2] = refill_per_sec (integer)
-- ARGV[3] = burst (integer)
-- ARGV[4] = ttl_seconds
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last_ms = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens  = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last_ms then
  local delta = (now - last_ms) / 1000.0
  tokens = math.min(burst, tokens + (delta * rate))
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tostring(tokens), 'ts', now)
redis.call('EXPIRE', key, ttl)

return allowed
`)

// clientIP relies on chi's RealIP having rewritten RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// fails open: a redis outage must not take the API down
func (m *RateLimitMiddleware) allow(ctx context.Context, key string, now time.Time, b config.RateBucketConfig) bool {
	ttl := int(b.TTL.Seconds())
	if ttl <= 0 {
		ttl = 120
	}

	allowed, err := luaTokenBucket.Run(ctx, m.rdb, []string{key},
		now.UnixMilli(),
		b.RefillPerSec,
		b.Burst,
		ttl,
	).Int64()
	if err != nil {
		m.log.Warnf("Rate limit check failed for %s, allowing: %v", key, err)
		return true
	}

	return allowed == 1
}
