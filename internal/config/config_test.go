package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "CACHE_BACKEND", "CACHE_TTL", "REMOTE_TIMEOUT", "MAX_QUERY_LENGTH", "OTEL_ENABLED", "CACHE_DIR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 60*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 500, cfg.Session.MaxQueryLength)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.True(t, filepath.IsAbs(cfg.Cache.Dir) || cfg.Cache.Dir == "~/.advising-chat/cache")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("REMOTE_TIMEOUT", "5s")
	t.Setenv("MAX_QUERY_LENGTH", "250")
	t.Setenv("CHAT_API", "https://chat.example.edu/query")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("GO_ENV", "production")

	cfg := Load()
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 250, cfg.Session.MaxQueryLength)
	assert.Equal(t, "https://chat.example.edu/query", cfg.Remote.ChatAPI)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.True(t, cfg.IsProduction())
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "an hour")
	t.Setenv("MAX_QUERY_LENGTH", "lots")

	cfg := Load()
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Session.MaxQueryLength)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Remote:  RemoteConfig{Timeout: time.Second},
			Cache:   CacheConfig{Backend: CacheBackendFile, Dir: "/tmp/cache", TTL: time.Hour},
			Session: SessionConfig{MaxQueryLength: 500},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Cache.Backend = "sqlite" }},
		{"file without dir", func(c *Config) { c.Cache.Dir = "" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero query length", func(c *Config) { c.Session.MaxQueryLength = 0 }},
		{"zero timeout", func(c *Config) { c.Remote.Timeout = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	memory := valid()
	memory.Cache.Backend = CacheBackendMemory
	memory.Cache.Dir = ""
	assert.NoError(t, memory.Validate())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".advising-chat"), expandHome("~/.advising-chat"))
	assert.Equal(t, "/var/cache", expandHome("/var/cache"))
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{
		Remote:  RemoteConfig{Timeout: time.Second},
		Cache:   CacheConfig{Backend: CacheBackendMemory, TTL: time.Hour},
		Session: SessionConfig{MaxQueryLength: 500},
	}
	require.NoError(t, cfg.Validate())
	assert.ErrorContains(t, cfg.ValidateServer(), "JWT_SECRET")

	cfg.Auth.JwtSecret = "s3cret"
	assert.NoError(t, cfg.ValidateServer())
}
