package cache

import (
	"context"
	"testing"
	"time"

	"github.com/promptveil/promptveil/internal/engine"
	"github.com/promptveil/promptveil/internal/guard"
	"github.com/promptveil/promptveil/internal/logger"

	"go.uber.org/zap"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("text", "default_pii", []string{"regex", "enhanced"})
	b := Key("text", "default_pii", []string{"regex", "enhanced"})
	if a != b {
		t.Error("same inputs must produce the same key")
	}
}

func TestKeyIgnoresDetectorOrder(t *testing.T) {
	a := Key("text", "default_pii", []string{"regex", "enhanced"})
	b := Key("text", "default_pii", []string{"enhanced", "regex"})
	if a != b {
		t.Error("detector order must not change the key")
	}
}

func TestKeyVariesByInput(t *testing.T) {
	base := Key("text", "default_pii", []string{"regex"})
	if Key("other", "default_pii", []string{"regex"}) == base {
		t.Error("text must contribute to the key")
	}
	if Key("text", "strict_pii", []string{"regex"}) == base {
		t.Error("policy must contribute to the key")
	}
	if Key("text", "default_pii", []string{"enhanced"}) == base {
		t.Error("detectors must contribute to the key")
	}
}

func TestKeySeparatorsUnambiguous(t *testing.T) {
	// Concatenation ambiguity between fields must not collide.
	if Key("ab", "c", nil) == Key("b", "ca", nil) {
		t.Error("field boundaries must be delimited")
	}
}

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(10, 0)
	ctx := context.Background()

	if entry, err := c.Get(ctx, "k"); err != nil || entry != nil {
		t.Fatalf("miss should be (nil, nil), got (%v, %v)", entry, err)
	}

	want := &Entry{Anonymized: "[EMAIL_1]", Mapping: engine.Mapping{"[EMAIL_1]": "a@b.co"}}
	if err := c.Set(ctx, "k", want); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Anonymized != "[EMAIL_1]" || got.Mapping["[EMAIL_1]"] != "a@b.co" {
		t.Errorf("got %+v", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(10, 10*time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, "k", &Entry{Anonymized: "x"})
	time.Sleep(25 * time.Millisecond)

	if entry, _ := c.Get(ctx, "k"); entry != nil {
		t.Error("expired entry must read as a miss")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	c := NewMemoryCache(2, 0)
	ctx := context.Background()

	c.Set(ctx, "a", &Entry{Anonymized: "1"})
	c.Set(ctx, "b", &Entry{Anonymized: "2"})
	c.Set(ctx, "c", &Entry{Anonymized: "3"})

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if entry, _ := c.Get(ctx, "a"); entry != nil {
		t.Error("oldest entry should have been evicted")
	}
	if entry, _ := c.Get(ctx, "c"); entry == nil {
		t.Error("newest entry should survive")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(10, 0)
	ctx := context.Background()

	c.Set(ctx, "a", &Entry{Anonymized: "1"})
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("len = %d after clear", c.Len())
	}
}

func TestCachedGuardResultStable(t *testing.T) {
	g, err := guard.New(guard.Options{}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cg := NewCachedGuard(g, NewMemoryCache(10, 0), zap.NewNop())
	ctx := context.Background()

	text := "mail a@b.co please"
	first, firstMapping := cg.Anonymize(ctx, text)
	second, secondMapping := cg.Anonymize(ctx, text)

	if first != second {
		t.Errorf("cached result differs: %q vs %q", first, second)
	}
	if firstMapping["[EMAIL_1]"] != secondMapping["[EMAIL_1]"] {
		t.Errorf("cached mapping differs: %v vs %v", firstMapping, secondMapping)
	}

	stats := cg.Stats()
	if stats.Hits != 1 {
		t.Errorf("stats = %+v, want exactly one hit", stats)
	}

	if restored := cg.Deanonymize(second, secondMapping); restored != text {
		t.Errorf("round trip through cache failed: %q", restored)
	}
}
