// Package ratelimit provides Redis-backed sliding-window rate limiting
// for execution endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tasklens/internal/taskerr"
)

// Config holds the limiter's Redis connection and window settings.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	// Limit requests per Window per key.
	Limit  int
	Window time.Duration
}

// DefaultConfig returns a limiter allowing 30 executions per minute.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "tasklens:ratelimit",
		Limit:     30,
		Window:    time.Minute,
	}
}

// Result reports the outcome of one rate limit check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Limiter gates requests per key. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Close() error
}

// New returns a Redis-backed limiter, or a no-op limiter when no Redis
// address is configured.
func New(cfg Config) (Limiter, error) {
	if cfg.RedisAddr == "" {
		return NoOpLimiter{}, nil
	}
	return NewRedisLimiter(cfg)
}

// slidingWindowScript counts requests in a rolling window using a
// sorted set keyed by request timestamp.
//
// KEYS[1]: rate limit key
// ARGV[1]: limit
// ARGV[2]: window in milliseconds
// ARGV[3]: current time in milliseconds
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
local allowed = current < limit

if allowed then
    redis.call('ZADD', key, now, now .. ':' .. math.random())
    current = current + 1
    redis.call('PEXPIRE', key, window)
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local resetAt = now + window
if oldest[2] then
    resetAt = tonumber(oldest[2]) + window
end

return {allowed and 1 or 0, current, math.max(0, limit - current), resetAt}
`

// RedisLimiter implements Limiter on a shared Redis instance so limits
// hold across multiple server processes.
type RedisLimiter struct {
	client *redis.Client
	config Config
	script *redis.Script
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(cfg Config) (*RedisLimiter, error) {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive, got limit=%d window=%s", cfg.Limit, cfg.Window)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	return &RedisLimiter{
		client: rdb,
		config: cfg,
		script: redis.NewScript(slidingWindowScript),
	}, nil
}

// Allow checks and consumes one request slot for key.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now().UnixMilli()
	fullKey := rl.config.KeyPrefix + ":" + key

	raw, err := rl.script.Run(ctx, rl.client, []string{fullKey},
		rl.config.Limit, rl.config.Window.Milliseconds(), now).Result()
	if err != nil {
		return nil, fmt.Errorf("sliding window script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result %T", raw)
	}

	res := &Result{
		Allowed:   asInt64(values[0]) == 1,
		Count:     int(asInt64(values[1])),
		Limit:     rl.config.Limit,
		Remaining: int(asInt64(values[2])),
	}
	if !res.Allowed {
		resetAt := asInt64(values[3])
		if wait := time.Duration(resetAt-now) * time.Millisecond; wait > 0 {
			res.RetryAfter = wait
		}
	}
	return res, nil
}

// Close releases the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

func asInt64(v interface{}) int64 {
	n, _ := v.(int64)
	return n
}

// NoOpLimiter allows everything. Used when rate limiting is disabled.
type NoOpLimiter struct{}

// Allow always permits the request.
func (NoOpLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Close is a no-op.
func (NoOpLimiter) Close() error { return nil }

// ErrRateLimited converts a denied result into the pipeline's typed error.
func ErrRateLimited(res *Result) error {
	return &taskerr.RateLimitError{
		Limit:      res.Limit,
		RetryAfter: res.RetryAfter,
	}
}
