package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/recipetube/backend/internal/domain"
)

const redisKeyPrefix = "recipetube"

// RedisCache stores entries in Redis, expiring them with the namespace TTL
type RedisCache struct {
	rdb  *redis.Client
	ttls TTLs
	log  zerolog.Logger
}

// NewRedisCache connects to redisURL and verifies the connection
func NewRedisCache(ctx context.Context, redisURL string, ttls TTLs, log zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	if ttls == nil {
		ttls = DefaultTTLs()
	}
	log = log.With().Str("component", "redis_cache").Logger()
	log.Info().Str("addr", opts.Addr).Msg("redis cache connected")

	return &RedisCache{rdb: rdb, ttls: ttls, log: log}, nil
}

func redisKey(ns domain.CacheNamespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, ns, key)
}

// Get retrieves a value; Redis has already expired stale entries
func (c *RedisCache) Get(ctx context.Context, ns domain.CacheNamespace, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, redisKey(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores a value with the namespace TTL
func (c *RedisCache) Set(ctx context.Context, ns domain.CacheNamespace, key string, value []byte) error {
	if err := c.rdb.Set(ctx, redisKey(ns, key), value, c.ttls[ns]).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value
func (c *RedisCache) Delete(ctx context.Context, ns domain.CacheNamespace, key string) error {
	if err := c.rdb.Del(ctx, redisKey(ns, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every key of a namespace
func (c *RedisCache) Clear(ctx context.Context, ns domain.CacheNamespace) error {
	pattern := redisKey(ns, "*")
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// PurgeExpired is a no-op; Redis expires keys itself
func (c *RedisCache) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
