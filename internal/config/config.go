// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Cache     CacheConfig     `json:"cache"`
	Prompt    PromptConfig    `json:"prompt"`
	Execution ExecutionConfig `json:"execution"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig represents the task store configuration
type StorageConfig struct {
	Driver string `json:"driver"` // "sqlite3" or "postgres"
	DSN    string `json:"-"`      // Never serialize credentials
}

// CacheConfig represents execution-result cache configuration
type CacheConfig struct {
	MaxSizeBytes int64         `json:"max_size_bytes"`
	DefaultTTL   time.Duration `json:"default_ttl"`
	CleanupEvery time.Duration `json:"cleanup_every"`
}

// PromptConfig represents prompt injection limits
type PromptConfig struct {
	MaxVariableLength int `json:"max_variable_length"`
	MaxTemplateLength int `json:"max_template_length"`
}

// ExecutionConfig represents orchestrator configuration
type ExecutionConfig struct {
	DryRunDefault bool   `json:"dry_run_default"`
	RulesPath     string `json:"rules_path,omitempty"` // optional association-rules YAML
}

// RateLimitConfig represents execute-endpoint rate limiting
type RateLimitConfig struct {
	RedisAddr     string        `json:"redis_addr,omitempty"` // empty disables limiting
	RedisPassword string        `json:"-"`
	Limit         int           `json:"limit"`
	Window        time.Duration `json:"window"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8216,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "./data/tasklens.db",
		},
		Cache: CacheConfig{
			MaxSizeBytes: 10 * 1024 * 1024, // 10MB
			DefaultTTL:   30 * time.Minute,
			CleanupEvery: 5 * time.Minute,
		},
		Prompt: PromptConfig{
			MaxVariableLength: 2000,
			MaxTemplateLength: 10000,
		},
		Execution: ExecutionConfig{
			DryRunDefault: false,
		},
		RateLimit: RateLimitConfig{
			Limit:  30,
			Window: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	if host := os.Getenv("TASKLENS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := envInt("TASKLENS_PORT"); port > 0 {
		cfg.Server.Port = port
	}
	if rt := envInt("TASKLENS_READ_TIMEOUT_SECONDS"); rt > 0 {
		cfg.Server.ReadTimeout = rt
	}
	if wt := envInt("TASKLENS_WRITE_TIMEOUT_SECONDS"); wt > 0 {
		cfg.Server.WriteTimeout = wt
	}

	if driver := os.Getenv("TASKLENS_DB_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if dsn := os.Getenv("TASKLENS_DB_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	if size := envInt64("TASKLENS_CACHE_MAX_BYTES"); size > 0 {
		cfg.Cache.MaxSizeBytes = size
	}
	if ttl := envDuration("TASKLENS_CACHE_TTL"); ttl > 0 {
		cfg.Cache.DefaultTTL = ttl
	}
	if sweep := envDuration("TASKLENS_CACHE_CLEANUP_EVERY"); sweep > 0 {
		cfg.Cache.CleanupEvery = sweep
	}

	if maxVar := envInt("TASKLENS_PROMPT_MAX_VARIABLE_LENGTH"); maxVar > 0 {
		cfg.Prompt.MaxVariableLength = maxVar
	}
	if maxTpl := envInt("TASKLENS_PROMPT_MAX_TEMPLATE_LENGTH"); maxTpl > 0 {
		cfg.Prompt.MaxTemplateLength = maxTpl
	}

	if dry := os.Getenv("TASKLENS_DRY_RUN"); dry != "" {
		cfg.Execution.DryRunDefault = dry == "true" || dry == "1"
	}
	if rules := os.Getenv("TASKLENS_RULES_PATH"); rules != "" {
		cfg.Execution.RulesPath = rules
	}

	if addr := os.Getenv("TASKLENS_REDIS_ADDR"); addr != "" {
		cfg.RateLimit.RedisAddr = addr
	}
	if pw := os.Getenv("TASKLENS_REDIS_PASSWORD"); pw != "" {
		cfg.RateLimit.RedisPassword = pw
	}
	if limit := envInt("TASKLENS_RATE_LIMIT"); limit > 0 {
		cfg.RateLimit.Limit = limit
	}
	if window := envDuration("TASKLENS_RATE_WINDOW"); window > 0 {
		cfg.RateLimit.Window = window
	}

	if level := os.Getenv("TASKLENS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("TASKLENS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required")
	}
	if c.Cache.MaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be positive, got %d", c.Cache.MaxSizeBytes)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.DefaultTTL)
	}
	if c.Prompt.MaxVariableLength <= 0 || c.Prompt.MaxTemplateLength <= 0 {
		return fmt.Errorf("prompt length limits must be positive")
	}
	if c.RateLimit.RedisAddr != "" && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive when redis is configured")
	}
	return nil
}

func envInt(key string) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return 0
}

func envInt64(key string) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func envDuration(key string) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return 0
}
