package redis

import (
	"assetactivity/internal/config"
	"assetactivity/internal/guard"
	rdb "assetactivity/internal/stores/redis"
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// delete only if we still own the lock
var luaRelease = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisGuard struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
}

var _ guard.Guard = (*RedisGuard)(nil)

// Cluster-wide lock via SET NX + TTL
// prefix example "activity:guard:"
func NewRedisGuard(log logger.Logger, cfg *config.GuardConfig, rdb *rdb.Client) (*RedisGuard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis guard")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis guard")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "guard:"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisGuard{
		log:    log,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (g *RedisGuard) TryLock(ctx context.Context, key string) (string, bool, error) {
	token, err := guard.NewToken()
	if err != nil {
		return "", false, err
	}

	ok, err := g.rdb.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil {
		g.log.Errorf("Redis SetNX error=%v", err)
		return "", false, fmt.Errorf("redis SetNX error=%v", err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (g *RedisGuard) Unlock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}

	released, err := luaRelease.Run(ctx, g.rdb, []string{g.prefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if released == 0 {
		g.log.Warnf("Unlock of key=%s skipped, lock is no longer held by this token", key)
	}
	return nil
}
