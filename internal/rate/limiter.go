package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces Redis limiter keys.
const DefaultPrefix = "ratelimit:create"

// Config holds limiter tuning parameters. MaxAttempts <= 0 disables limiting.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

func (c Config) enabled() bool {
	return c.MaxAttempts > 0 && c.Window > 0
}

// Limiter admits or rejects one hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RedisLimiter keeps window counters in Redis so every instance of a
// stateless deployment shares them.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisLimiter] backed by the given Redis client.
func NewRedis(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records one hit for key and returns ErrRateLimited past the budget.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	if !l.config.enabled() {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.config.Prefix+":"+key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// MemoryLimiter keeps window counters in process memory.
type MemoryLimiter struct {
	counters *cache.Cache
	config   Config
}

// NewMemory creates a [MemoryLimiter]. Expired windows are purged every
// window length.
func NewMemory(cfg Config) *MemoryLimiter {
	cleanup := cfg.Window
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryLimiter{
		counters: cache.New(cfg.Window, cleanup),
		config:   cfg,
	}
}

// Allow records one hit for key and returns ErrRateLimited past the budget.
func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	if !l.config.enabled() {
		return nil
	}

	for {
		if err := l.counters.Add(key, 1, l.config.Window); err == nil {
			return nil
		}
		count, err := l.counters.IncrementInt(key, 1)
		if err != nil {
			// The window expired between Add and IncrementInt.
			continue
		}
		if count > l.config.MaxAttempts {
			return ErrRateLimited
		}
		return nil
	}
}
