package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validMint = "So11111111111111111111111111111111111111112"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 45*time.Second, cfg.Target.ReconcileInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.FlushInterval)
	assert.Equal(t, 2000, cfg.Groups.IdentityCap)
	assert.Equal(t, 200.0, cfg.Price.Initial)
	assert.Equal(t, []string{"SEEK", "CSEEK"}, cfg.Target.Symbols)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scout.yaml", `
feed:
  reconnect_delay: 7s
target:
  names: ["Lobster King"]
  symbols: []
  reconcile_interval: 1m
groups:
  themes:
    - group: claw-meta
      keywords: [lobster]
history:
  backend: clickhouse
  clickhouse_dsn: clickhouse://localhost:9000/default
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7*time.Second, cfg.Feed.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Feed.DialRetryDelay, "unset fields keep defaults")
	assert.Equal(t, []string{"Lobster King"}, cfg.Target.Names)
	assert.Empty(t, cfg.Target.Symbols)
	assert.Equal(t, time.Minute, cfg.Target.ReconcileInterval)
	require.Len(t, cfg.Groups.Themes, 1)
	assert.Equal(t, []string{"lobster"}, cfg.Groups.Themes[0].Keywords)
	assert.Equal(t, BackendClickhouse, cfg.History.Backend)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SCOUT_OFFICIAL_MINT":  validMint,
		"SCOUT_TARGET_SYMBOLS": "AAA, BBB ,",
		"DATABASE_URL":         "postgres://u:p@localhost/scout",
		"TELEGRAM_TOKEN":       "123:abc",
		"TELEGRAM_CHAT_ID":     "-1001",
		"SCOUT_SOL_PRICE":      "151.5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, validMint, cfg.Target.Mint)
	assert.Equal(t, []string{"AAA", "BBB"}, cfg.Target.Symbols)
	assert.Equal(t, "postgres://u:p@localhost/scout", cfg.Remote.PostgresDSN)
	assert.Equal(t, int64(-1001), cfg.Notify.TelegramChatID)
	assert.Equal(t, 151.5, cfg.Price.Initial)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "TELEGRAM_CHAT_ID" {
			return "chat", true
		}
		return "", false
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mint", func(c *Config) { c.Target.Mint = "not-base58-0OIl" }},
		{"short mint", func(c *Config) { c.Target.Mint = "abc" }},
		{"no rule", func(c *Config) { c.Target.Names = nil; c.Target.Symbols = nil }},
		{"unknown history", func(c *Config) { c.History.Backend = "kafka" }},
		{"postgres history without dsn", func(c *Config) { c.History.Backend = BackendPostgres }},
		{"redis cache without addr", func(c *Config) { c.Cache.Backend = BackendRedis }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"telegram without chat", func(c *Config) { c.Notify.TelegramToken = "t" }},
		{"zero flush", func(c *Config) { c.Session.FlushInterval = 0 }},
		{"no endpoint", func(c *Config) { c.Feed.Endpoint = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateMint(t *testing.T) {
	assert.NoError(t, ValidateMint(validMint))
	assert.Error(t, ValidateMint("M1"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SCOUT_TEST_A=from-env\nSCOUT_TEST_B=from-env\n")
	writeFile(t, dir, ".env.local", "SCOUT_TEST_B=from-local\n")
	t.Setenv("SCOUT_TEST_A", "")
	t.Setenv("SCOUT_TEST_B", "")
	os.Unsetenv("SCOUT_TEST_A")
	os.Unsetenv("SCOUT_TEST_B")

	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-env", os.Getenv("SCOUT_TEST_A"))
	assert.Equal(t, "from-local", os.Getenv("SCOUT_TEST_B"))
}

func TestLoadDotEnv_MissingFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv(t.TempDir()))
}
