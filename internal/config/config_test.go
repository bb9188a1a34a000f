package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "chatty"
	cfg.OrderAPI.BaseURL = ""
	cfg.Redis.Addr = ""
	cfg.Engine.FeedCap = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "feed_cap")
}

func TestValidate_RequiresOneVariant(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Admin.Enabled = false
	cfg.Engine.Courier.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of admin or courier")
}

func TestValidate_CourierHeartbeatRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Courier.HeartbeatInterval = duration{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

func TestValidate_ArchiveNeedsPostgresAndS3(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	cfg.Postgres.Enabled = false
	cfg.S3.Endpoint = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres")
	assert.Contains(t, err.Error(), "s3: endpoint")
}

func TestLoad_TOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[order_api]
base_url = "https://api.example.com/api"
timeout = "5s"

[engine.courier]
enabled = false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://api.example.com/api", cfg.OrderAPI.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.OrderAPI.Timeout.Duration)
	assert.False(t, cfg.Engine.Courier.Enabled)

	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30, cfg.Engine.FeedCap)
	assert.Equal(t, 2*time.Minute, cfg.Engine.Admin.PollInterval.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "info"`), 0o600))

	t.Setenv("ORDERWATCH_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ORDERWATCH_ENGINE_COURIER_POLL_INTERVAL", "30s")
	t.Setenv("ORDERWATCH_NOTIFY_ADMIN_RECIPIENTS", "tok-1, tok-2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Engine.Courier.PollInterval.Duration)
	assert.Equal(t, []string{"tok-1", "tok-2"}, cfg.Notify.AdminRecipients)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
