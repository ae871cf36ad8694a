package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/engine"
	"github.com/promptveil/promptveil/internal/guard"
)

// CachedGuard wraps a Guard with result memoization. De-anonymization is
// never cached; it is already a single substitution pass.
type CachedGuard struct {
	guard  *guard.Guard
	cache  Cache
	logger *zap.Logger
}

// NewCachedGuard wraps g with the given cache backend.
func NewCachedGuard(g *guard.Guard, cache Cache, logger *zap.Logger) *CachedGuard {
	return &CachedGuard{guard: g, cache: cache, logger: logger}
}

// Anonymize returns the cached result for text when present, otherwise
// anonymizes and stores the outcome. Cache write failures are logged, not
// propagated; the caller still gets a correct result.
func (c *CachedGuard) Anonymize(ctx context.Context, text string) (string, engine.Mapping) {
	key := Key(text, c.guard.Policy().Name, c.guard.DetectorNames())

	if entry, _ := c.cache.Get(ctx, key); entry != nil {
		return entry.Anonymized, entry.Mapping
	}

	anonymized, mapping := c.guard.Anonymize(text)

	if err := c.cache.Set(ctx, key, &Entry{Anonymized: anonymized, Mapping: mapping}); err != nil {
		c.logger.Warn("Failed to cache anonymization result", zap.Error(err))
	}
	return anonymized, mapping
}

// Deanonymize restores original values through the wrapped guard.
func (c *CachedGuard) Deanonymize(text string, mapping engine.Mapping) string {
	return c.guard.Deanonymize(text, mapping)
}

// Stats exposes the backend's hit/miss counters.
func (c *CachedGuard) Stats() Stats {
	return c.cache.Stats()
}
