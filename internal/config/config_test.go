package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8216, cfg.Server.Port)
	assert.Equal(t, "localhost:8216", cfg.Server.Addr())

	// Storage defaults
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "./data/tasklens.db", cfg.Storage.DSN)

	// Cache defaults
	assert.Equal(t, int64(10*1024*1024), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CleanupEvery)

	// Prompt defaults
	assert.Equal(t, 2000, cfg.Prompt.MaxVariableLength)
	assert.Equal(t, 10000, cfg.Prompt.MaxTemplateLength)

	// Rate limiting is off until Redis is configured
	assert.Empty(t, cfg.RateLimit.RedisAddr)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TASKLENS_HOST", "0.0.0.0")
	t.Setenv("TASKLENS_PORT", "9000")
	t.Setenv("TASKLENS_DB_DRIVER", "postgres")
	t.Setenv("TASKLENS_DB_DSN", "postgres://localhost/tasklens?sslmode=disable")
	t.Setenv("TASKLENS_CACHE_MAX_BYTES", "1048576")
	t.Setenv("TASKLENS_CACHE_TTL", "10m")
	t.Setenv("TASKLENS_REDIS_ADDR", "localhost:6379")
	t.Setenv("TASKLENS_RATE_LIMIT", "5")
	t.Setenv("TASKLENS_RATE_WINDOW", "30s")
	t.Setenv("TASKLENS_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestEnvParseFailuresKeepDefaults(t *testing.T) {
	t.Setenv("TASKLENS_PORT", "not-a-number")
	t.Setenv("TASKLENS_CACHE_TTL", "soon")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	assert.Equal(t, 8216, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }},
		{"zero cache size", func(c *Config) { c.Cache.MaxSizeBytes = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }},
		{"zero prompt limit", func(c *Config) { c.Prompt.MaxVariableLength = 0 }},
		{"redis without limit", func(c *Config) {
			c.RateLimit.RedisAddr = "localhost:6379"
			c.RateLimit.Limit = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
