package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := validateConfig(GetDefaults()); err != nil {
		t.Errorf("defaults failed validation: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 9191
privacy:
  policy: strict_pii
  overlap: legacy
sessions:
  backend: memory
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Privacy.Policy != "strict_pii" {
		t.Errorf("policy = %q", cfg.Privacy.Policy)
	}
	if cfg.Privacy.Overlap != "legacy" {
		t.Errorf("overlap = %q", cfg.Privacy.Overlap)
	}
	// Untouched sections keep their defaults.
	if cfg.Sessions.KeyPrefix != "promptveil:session" {
		t.Errorf("key prefix = %q, defaults did not apply", cfg.Sessions.KeyPrefix)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad overlap", func(c *Config) { c.Privacy.Overlap = "sideways" }, "overlap"},
		{"bad session backend", func(c *Config) { c.Sessions.Backend = "dynamo" }, "sessions backend"},
		{"redis sessions without url", func(c *Config) {
			c.Sessions.Backend = "redis"
			c.Sessions.RedisURL = ""
		}, "redis_url"},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "disk" }, "cache backend"},
		{"audit without database", func(c *Config) { c.Audit.Enabled = true }, "database_url"},
		{"bad rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerMinute = 0
		}, "rate limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaults()
			tc.mutate(cfg)
			err := validateConfig(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
