package redis

import (
	"assetactivity/internal/capture"
	"assetactivity/internal/domain"
	"assetactivity/internal/period"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
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

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *ArtifactStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr: mr.Addr(),
		}),
	}
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewArtifactStore(createTestLogger(), client, "test:")
	require.NoError(t, err)

	return mr, s
}

// ========== Constructor Tests ==========

func TestNewArtifactStore(t *testing.T) {
	_, err := NewArtifactStore(createTestLogger(), nil, "")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := &Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	defer client.Close()

	s, err := NewArtifactStore(createTestLogger(), client, "")
	require.NoError(t, err)
	assert.Equal(t, "activity:", s.prefix)
}

// ========== Snapshot Tests ==========

func TestArtifactStore_SnapshotRoundTrip(t *testing.T) {
	mr, s := setupTestStore(t)
	ctx := context.Background()

	raw, err := capture.Encode(domain.Snapshot{42: {Owner: "alice", BBLListed: true}}, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, s.SaveSnapshot(ctx, "2024-03-10T05", raw))
	assert.True(t, mr.Exists("test:snapshot:2024-03-10T05"))

	snap, err := s.LoadSnapshot(ctx, "2024-03-10T05")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{Owner: "alice", BBLListed: true}, snap[42])

	keys, err := s.ListKeys(ctx, period.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10T05"}, keys)
}

func TestArtifactStore_SaveSnapshotRejectsBadKey(t *testing.T) {
	_, s := setupTestStore(t)

	err := s.SaveSnapshot(context.Background(), "2024-03-10", []byte(`{"tokens":{}}`))
	assert.ErrorIs(t, err, period.ErrInvalidKey)
}

func TestArtifactStore_LoadSnapshotErrors(t *testing.T) {
	mr, s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.LoadSnapshot(ctx, "2024-03-10T06")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mr.Set("test:snapshot:2024-03-10T07", "{broken"))
	_, err = s.LoadSnapshot(ctx, "2024-03-10T07")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

// ========== Event Log Tests ==========

func TestArtifactStore_EventLogRoundTrip(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	l := domain.NewEventLog()
	l.Append(7, domain.Transfer{From: "a", To: "b", At: 3})
	l.Append(7, domain.BreakChange{From: false, To: true, At: 3})

	require.NoError(t, s.SaveEventLog(ctx, period.Day, "2024-03-10", l))

	got, err := s.LoadEventLog(ctx, period.Day, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, l, got)

	// overwrite replaces, index keeps one entry
	require.NoError(t, s.SaveEventLog(ctx, period.Day, "2024-03-10", domain.NewEventLog()))
	got, err = s.LoadEventLog(ctx, period.Day, "2024-03-10")
	require.NoError(t, err)
	assert.Zero(t, got.Summary.TotalEvents)

	keys, err := s.ListKeys(ctx, period.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10"}, keys)
}

func TestArtifactStore_LoadEventLogErrors(t *testing.T) {
	mr, s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.LoadEventLog(ctx, period.Week, "2024-W11")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mr.Set("test:log:week:2024-W11", `{"summary":{"transfers":2,"total_events":2},"activity_log":{}}`))
	_, err = s.LoadEventLog(ctx, period.Week, "2024-W11")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestArtifactStore_ListKeysSorted(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"2024-03-12", "2024-03-10", "2024-03-11"} {
		require.NoError(t, s.SaveEventLog(ctx, period.Day, k, domain.NewEventLog()))
	}

	keys, err := s.ListKeys(ctx, period.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10", "2024-03-11", "2024-03-12"}, keys)

	keys, err = s.ListKeys(ctx, period.Month)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestArtifactStore_WriteFailure(t *testing.T) {
	mr, s := setupTestStore(t)
	mr.Close()

	err := s.SaveEventLog(context.Background(), period.Day, "2024-03-10", domain.NewEventLog())
	assert.ErrorIs(t, err, domain.ErrWriteFailure)
	assert.Error(t, s.Health(context.Background()))
}
