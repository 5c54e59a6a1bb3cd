package redis

import (
	"assetactivity/internal/capture"
	"assetactivity/internal/domain"
	"assetactivity/internal/period"
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Blob store for captures and event logs.
	<prefix>snapshot:<hour_key>   raw capture JSON
	<prefix>log:<level>:<key>     event log JSON
	<prefix>index:<level>         ZSET of stored keys, score 0 -> lexicographic order
*/

type ArtifactStore struct {
	log    logger.Logger
	rdb    *Client
	prefix string
}

func NewArtifactStore(log logger.Logger, rdb *Client, prefix string) (*ArtifactStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required to the artifact store")
	}
	if prefix == "" {
		prefix = "activity:"
	}

	return &ArtifactStore{log: log, rdb: rdb, prefix: prefix}, nil
}

func (s *ArtifactStore) snapshotKey(hourKey string) string {
	return s.prefix + "snapshot:" + hourKey
}

func (s *ArtifactStore) logKey(level period.Level, key string) string {
	return s.prefix + "log:" + string(level) + ":" + key
}

func (s *ArtifactStore) indexKey(level period.Level) string {
	return s.prefix + "index:" + string(level)
}

// SaveSnapshot stores a raw capture under its hour key
func (s *ArtifactStore) SaveSnapshot(ctx context.Context, hourKey string, raw []byte) error {
	if _, err := period.Parse(period.Hour, hourKey); err != nil {
		return err
	}

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.snapshotKey(hourKey), raw, 0)
		p.ZAdd(ctx, s.indexKey(period.Hour), goredis.Z{Score: 0, Member: hourKey})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: snapshot %s: %v", domain.ErrWriteFailure, hourKey, err)
	}

	return nil
}

func (s *ArtifactStore) LoadSnapshot(ctx context.Context, hourKey string) (domain.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.snapshotKey(hourKey)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, hourKey)
		}
		return nil, fmt.Errorf("redis get snapshot %s: %w", hourKey, err)
	}

	snap, st, err := capture.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", hourKey, err)
	}
	if st.Skipped > 0 {
		s.log.Warnf("Snapshot %s: skipped %d malformed records", hourKey, st.Skipped)
	}

	return snap, nil
}

func (s *ArtifactStore) LoadEventLog(ctx context.Context, level period.Level, key string) (*domain.EventLog, error) {
	raw, err := s.rdb.Get(ctx, s.logKey(level, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s log %s", domain.ErrNotFound, level, key)
		}
		return nil, fmt.Errorf("redis get %s log %s: %w", level, key, err)
	}

	l, err := domain.UnmarshalEventLog(raw)
	if err != nil {
		return nil, fmt.Errorf("%s log %s: %w", level, key, err)
	}

	return l, nil
}

// SaveEventLog overwrites the log stored under (level, key)
func (s *ArtifactStore) SaveEventLog(ctx context.Context, level period.Level, key string, l *domain.EventLog) error {
	data, err := domain.MarshalEventLog(l)
	if err != nil {
		return fmt.Errorf("%w: marshal %s log %s: %v", domain.ErrWriteFailure, level, key, err)
	}

	start := time.Now()
	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.logKey(level, key), data, 0)
		p.ZAdd(ctx, s.indexKey(level), goredis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s log %s: %v", domain.ErrWriteFailure, level, key, err)
	}

	s.log.Debugf("Saved %s log %s: %d bytes in %s", level, key, len(data), time.Since(start))
	return nil
}

// ListKeys returns the stored keys of a level in ascending order
func (s *ArtifactStore) ListKeys(ctx context.Context, level period.Level) ([]string, error) {
	keys, err := s.rdb.ZRangeByLex(ctx, s.indexKey(level), &goredis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list %s keys: %w", level, err)
	}

	return keys, nil
}

func (s *ArtifactStore) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
