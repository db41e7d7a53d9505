package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8082", cfg.Relay.Address)
	assert.Equal(t, 30*time.Second, cfg.Relay.PingInterval)
	assert.Equal(t, 100, cfg.Relay.OfflineQueueCapacity)
	assert.Equal(t, 24*time.Hour, cfg.Relay.OfflineTTL)
	assert.Equal(t, time.Hour, cfg.Relay.SweepInterval)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Relay.Address, cfg.Relay.Address)
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
relay:
  address: ":9090"
  offline_queue_capacity: 25
  offline_ttl: 1h
logging:
  level: debug
redis:
  enabled: true
  address: "redis:6379"
  pool_size: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Relay.Address)
	assert.Equal(t, 25, cfg.Relay.OfflineQueueCapacity)
	assert.Equal(t, time.Hour, cfg.Relay.OfflineTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)

	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Relay.PingInterval)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
relay:
  read_timeout: 10s
  ping_interval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read_timeout")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PEERLINK_ADDRESS", ":7000")
	t.Setenv("PEERLINK_REDIS_ADDRESS", "cache:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Relay.Address)
	assert.Equal(t, "cache:6379", cfg.Redis.Address)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidateCatchesBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty address", func(c *Config) { c.Relay.Address = "" }, "relay.address"},
		{"zero capacity", func(c *Config) { c.Relay.OfflineQueueCapacity = 0 }, "offline_queue_capacity"},
		{"zero ttl", func(c *Config) { c.Relay.OfflineTTL = 0 }, "offline_ttl"},
		{"read timeout below ping interval", func(c *Config) { c.Relay.ReadTimeout = 10 * time.Second }, "read_timeout"},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }, "redis.address"},
		{"rate limit without rate", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.WebSocket.MessagesPerSecond = 0 }, "messages_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
