package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, 50, cfg.Flow.MaxTransactions)
	assert.Equal(t, 20, cfg.Flow.MaxEvents)
	assert.False(t, cfg.Redis.Enabled)
	assert.NotEmpty(t, cfg.Feed.BaseURL)
	assert.Positive(t, cfg.Feed.RPS)
}

func TestLoadOverridesDefaults(t *testing.T) {
	raw := `
server:
  port: 9999
engine:
  poll_interval: 2s
  instruments:
    - SOL/USDC
    - ETH/USDC
feed:
  base_url: http://feed.internal:8080
  rps: 2
flow:
  quiet_tx_per_min: 8
redis:
  enabled: true
  addr: redis.internal:6379
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "untouched fields keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, []string{"SOL/USDC", "ETH/USDC"}, cfg.Engine.Instruments)
	assert.Equal(t, "http://feed.internal:8080", cfg.Feed.BaseURL)
	assert.Equal(t, 2.0, cfg.Feed.RPS)
	assert.Equal(t, 8.0, cfg.Flow.QuietTxPerMin)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "flowpulse.events", cfg.Redis.Channel, "channel default survives partial redis block")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
