package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
stores:
  redis:
    addr: "127.0.0.1:6379"
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.HTTP.Addr)
	assert.Equal(t, 2*time.Minute, cfg.App.BuildTimeout)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.False(t, cfg.Rollup.CarryPrevDay)
	assert.Zero(t, cfg.Classifier.EntityCount, "detector applies its own default")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`api: {http: {addr: ":9000"}}`))
	assert.ErrorContains(t, err, "stores.redis.addr")

	_, err = Parse([]byte("stores: [unterminated"))
	assert.ErrorContains(t, err, "failed to unmarshal config")
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "cmd", "activity", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Classifier.EntityCount)
	assert.Equal(t, 2, cfg.Classifier.MinSnapshots)
	assert.True(t, cfg.Rollup.CarryPrevDay)
	assert.Equal(t, 31, cfg.Rollup.MaxMonthInputs)
	assert.Equal(t, "redis", cfg.Guard.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Guard.TTL)
	assert.Equal(t, time.Second, cfg.Stores.ClickHouse.Writer.BatchMaxInterval)
	assert.Equal(t, "activity.rollup", cfg.PubSub.NATS.SubjectPrefix)
	assert.Contains(t, cfg.API.HTTP.CORS.Methods, "PUT")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
