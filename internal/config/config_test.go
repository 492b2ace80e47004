package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	cfg, err := ParseConfig(flag.NewFlagSet("test", flag.ContinueOnError), args)
	require.NoError(t, err)
	return cfg
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg := parse(t)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, "127.0.0.1:8090", cfg.ListenAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 16, cfg.SubscriberBuffer)
	assert.Equal(t, 64, cfg.JournalSessions)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_EnvThenFlags(t *testing.T) {
	t.Setenv("BAZINGA_API_URL", "https://bazinga.example")
	t.Setenv("BAZINGA_DIAL_TIMEOUT", "3s")
	t.Setenv("BAZINGA_LOG_LEVEL", "debug")

	cfg := parse(t, "-log-level", "warn")

	assert.Equal(t, "https://bazinga.example", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.DialTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseConfig_BadEnv(t *testing.T) {
	t.Setenv("BAZINGA_DIAL_TIMEOUT", "soon")

	_, err := ParseConfig(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ws api url", func(c *Config) { c.APIURL = "ws://h" }},
		{"no host", func(c *Config) { c.APIURL = "http://" }},
		{"no listen", func(c *Config) { c.ListenAddr = "" }},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero read limit", func(c *Config) { c.ReadLimit = 0 }},
		{"zero buffer", func(c *Config) { c.SubscriberBuffer = 0 }},
		{"zero journal sessions", func(c *Config) { c.JournalSessions = 0 }},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parse(t)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BAZINGA_LISTEN_ADDR=127.0.0.1:9999\nBAZINGA_LOG_FORMAT=console\n"), 0o600))

	// Set first so t.Setenv restores them; values already present win over the file.
	t.Setenv("BAZINGA_LOG_FORMAT", "json")
	t.Setenv("BAZINGA_LISTEN_ADDR", "")
	require.NoError(t, os.Unsetenv("BAZINGA_LISTEN_ADDR"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	cfg := parse(t)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, "json", cfg.LogFormat)
}
