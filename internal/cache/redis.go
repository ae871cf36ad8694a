package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisCache is a Redis-backed Cache for multi-instance deployments.
type RedisCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config *Config, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("ttl", config.TTL))

	return &RedisCache{client: client, config: config, logger: logger}, nil
}

// Get implements Cache. Lookup failures are logged and reported as misses
// so a degraded Redis never takes the anonymization path down with it.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache lookup failed", zap.Error(err))
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("Failed to unmarshal cached entry", zap.Error(err))
		c.client.Del(ctx, c.key(key))
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return &entry, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) error {
	entry.CachedAt = time.Now()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache entry: %w", err)
	}
	return nil
}

// Clear implements Cache, removing every key under the configured prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := c.config.KeyPrefix + ":*"

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Stats implements Cache.
func (c *RedisCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	return Stats{Hits: hits, Misses: misses, HitRate: rate(hits, misses)}
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(key string) string {
	return fmt.Sprintf("%s:%s", c.config.KeyPrefix, key)
}

// maskRedisURL hides credentials in the Redis URL for logging.
func maskRedisURL(url string) string {
	if !strings.Contains(url, "@") {
		return url
	}
	parts := strings.SplitN(url, "@", 2)
	userParts := strings.Split(parts[0], ":")
	if len(userParts) >= 3 {
		userParts[len(userParts)-1] = "***"
		parts[0] = strings.Join(userParts, ":")
	}
	return strings.Join(parts, "@")
}
