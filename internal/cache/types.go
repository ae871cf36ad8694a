// Package cache memoizes anonymization results so identical text does not
// pay for detection twice. Anonymization is deterministic for a fixed
// (text, policy, detectors) triple, which is exactly what the cache key
// hashes over.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/promptveil/promptveil/internal/engine"
)

// Entry is one cached anonymization result.
type Entry struct {
	Anonymized string         `json:"anonymized"`
	Mapping    engine.Mapping `json:"mapping"`
	CachedAt   time.Time      `json:"cached_at"`
}

// Stats tracks cache performance.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Config contains cache configuration.
type Config struct {
	RedisURL   string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
}

// Cache stores anonymization results keyed by Key output. Implementations
// must be safe for concurrent use; Get misses are (nil, nil), not errors.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Clear(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Key derives a deterministic cache key from the text and the guard
// configuration that would process it. Detector names are sorted so the key
// does not depend on run order; run order only affects same-start
// tie-breaks, which sorted keys deliberately ignore. Callers relying on
// tie-break order should disable the cache instead.
func Key(text, policyName string, detectors []string) string {
	names := append([]string(nil), detectors...)
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(policyName))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func rate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
