package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/engine"
)

// Config contains Redis session store configuration.
type Config struct {
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RedisStore persists mappings in Redis so a fleet of gateway instances can
// share sessions. Every write refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection before
// returning; connection failures are construction-time errors.
func NewRedisStore(config *Config, logger *zap.Logger) (*RedisStore, error) {
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

	logger.Info("Session store initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("ttl", config.TTL))

	return &RedisStore{client: client, config: config, logger: logger}, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sessionID string, mapping engine.Mapping) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sessionID), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save session mapping: %w", err)
	}

	s.logger.Debug("Session mapping saved",
		zap.String("session_id", sessionID),
		zap.Int("entries", len(mapping)))
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (engine.Mapping, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session mapping: %w", err)
	}

	var mapping engine.Mapping
	if err := json.Unmarshal([]byte(data), &mapping); err != nil {
		// A corrupt entry is unrecoverable; drop it rather than keep
		// failing every lookup.
		s.client.Del(ctx, s.key(sessionID))
		return nil, fmt.Errorf("failed to unmarshal session mapping: %w", err)
	}
	return mapping, nil
}

// Merge implements Store. Existing placeholder keys win; see the Store
// contract.
func (s *RedisStore) Merge(ctx context.Context, sessionID string, mapping engine.Mapping) error {
	existing, err := s.Load(ctx, sessionID)
	if err == ErrNotFound {
		return s.Save(ctx, sessionID, mapping)
	}
	if err != nil {
		return err
	}

	for placeholder, original := range mapping {
		if _, exists := existing[placeholder]; !exists {
			existing[placeholder] = original
		}
	}
	return s.Save(ctx, sessionID, existing)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session mapping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.config.KeyPrefix, sessionID)
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
