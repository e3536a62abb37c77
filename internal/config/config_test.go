package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "DB_MIGRATE", "REDIS_URL", "AUTH_MODE",
		"AUTH_HMAC_SECRET", "AUTH_JWKS_URL", "RATE_RPS", "RATE_BURST", "WEBHOOK_MAX_ATTEMPTS"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearLegacyEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "dev", cfg.Auth.Mode)
	assert.Equal(t, 500, cfg.Limits.MaxStations)
	assert.Equal(t, 8, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Store.ShouldMigrate())
	assert.Empty(t, cfg.Store.DatabaseURL)
}

func TestLoadYAML(t *testing.T) {
	clearLegacyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  addr: ":9000"
  rateRPS: 5
limits:
  maxStations: 40
  maxTasks: 100
store:
  migrate: false
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5.0, cfg.Server.RateRPS)
	assert.Equal(t, 6, cfg.Server.RateBurst)
	assert.Equal(t, 40, cfg.Limits.MaxStations)
	assert.Equal(t, 100, cfg.Limits.MaxTasks)
	assert.Equal(t, 20000, cfg.Limits.MaxConnections)
	assert.False(t, cfg.Store.ShouldMigrate())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	clearLegacyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"limits":{"maxTasks":10}}`), 0o644))
	t.Setenv("STATIONPLAN_LIMITS__MAX_TASKS", "25")
	t.Setenv("STATIONPLAN_REDIS__URL", "redis://cache:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Limits.MaxTasks)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
}

func TestLegacyEnv(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/x")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "4")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "3")
	t.Setenv("DB_MIGRATE", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "postgres://u:p@db/x", cfg.Store.DatabaseURL)
	assert.Equal(t, 2.5, cfg.Server.RateRPS)
	assert.Equal(t, 4, cfg.Server.RateBurst)
	assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)
	assert.False(t, cfg.Store.ShouldMigrate())

	t.Setenv("RATE_BURST", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("AUTH_MODE", "hmac")
	_, err := Load("")
	assert.ErrorContains(t, err, "hmacSecret")

	t.Setenv("AUTH_HMAC_SECRET", "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "hmac", cfg.Auth.Mode)

	bad := LoggingConfig{Level: "chatty"}
	assert.Error(t, bad.Validate())
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := Load("config.toml")
	assert.Error(t, err)
}
