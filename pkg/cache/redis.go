package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/complium/complium/pkg/metrics"
)

// RedisCache backs the response cache with a shared Redis instance, for
// deployments running more than one process. Failures degrade to misses;
// the cache never becomes load-bearing.
type RedisCache struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewRedisCache(client *redis.Client, log *logrus.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).WithField("key", key).Warn("cache: redis get failed")
		}
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: redis set failed")
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: redis delete failed")
	}
}

func (c *RedisCache) ClearPattern(ctx context.Context, pattern string) {
	match := normalizePattern(pattern) + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			c.log.WithError(err).WithField("pattern", match).Warn("cache: redis scan failed")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.WithError(err).WithField("pattern", match).Warn("cache: redis bulk delete failed")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

var _ Cache = (*RedisCache)(nil)
var _ Cache = (*MemoryCache)(nil)
