package config

import "time"

// Config is the full gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Sessions  SessionsConfig  `yaml:"sessions" mapstructure:"sessions"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Upstream  UpstreamConfig  `yaml:"upstream" mapstructure:"upstream"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// PrivacyConfig selects detectors, the active policy and the overlap
// strategy for the anonymization engine.
type PrivacyConfig struct {
	Enabled    bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors  []string `yaml:"detectors" mapstructure:"detectors"`
	Policy     string   `yaml:"policy" mapstructure:"policy"`
	PolicyPath string   `yaml:"policy_path" mapstructure:"policy_path"`
	Overlap    string   `yaml:"overlap" mapstructure:"overlap"` // longest, confidence, priority, or legacy

	HeaderScrubbing HeaderScrubbingConfig `yaml:"header_scrubbing" mapstructure:"header_scrubbing"`
}

// HeaderScrubbingConfig controls redaction of sensitive HTTP headers.
type HeaderScrubbingConfig struct {
	Enabled              bool     `yaml:"enabled" mapstructure:"enabled"`
	Headers              []string `yaml:"headers" mapstructure:"headers"`
	PreserveUpstreamAuth bool     `yaml:"preserve_upstream_auth" mapstructure:"preserve_upstream_auth"`
}

// SessionsConfig configures where placeholder mappings are stored between
// the request and response legs of a proxied call.
type SessionsConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// CacheConfig configures the anonymization result cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend    string        `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL   string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
}

// AuditConfig configures the Postgres audit trail. Disabled unless a
// database URL is set.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// RateLimitConfig throttles clients by IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"` // json or console
	File   LoggingFileConfig `yaml:"file" mapstructure:"file"`
}

// LoggingFileConfig enables the file sink.
type LoggingFileConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// UpstreamConfig contains the LLM provider endpoints the gateway fronts.
type UpstreamConfig struct {
	OpenAI    string        `yaml:"openai" mapstructure:"openai"`
	Anthropic string        `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    string        `yaml:"ollama" mapstructure:"ollama"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EventsConfig configures the live dashboard event hub.
type EventsConfig struct {
	Enabled              bool   `yaml:"enabled" mapstructure:"enabled"`
	Path                 string `yaml:"path" mapstructure:"path"`
	BroadcastRequests    bool   `yaml:"broadcast_requests" mapstructure:"broadcast_requests"`
	BroadcastDetections  bool   `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
	BroadcastConnections bool   `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// GetDefaults returns a configuration with sensible defaults.
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Privacy: PrivacyConfig{
			Enabled:   true,
			Detectors: []string{"regex"},
			Policy:    "default_pii",
			Overlap:   "longest",
			HeaderScrubbing: HeaderScrubbingConfig{
				Enabled:              true,
				Headers:              []string{"authorization", "x-api-key", "cookie"},
				PreserveUpstreamAuth: true,
			},
		},
		Sessions: SessionsConfig{
			Backend:   "memory",
			RedisURL:  "redis://localhost:6379",
			KeyPrefix: "promptveil:session",
			TTL:       24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Backend:    "memory",
			RedisURL:   "redis://localhost:6379",
			KeyPrefix:  "promptveil:cache",
			TTL:        time.Hour,
			MaxEntries: 10000,
		},
		Audit: AuditConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 600,
			Burst:             100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: LoggingFileConfig{
				Enabled: false,
				Path:    "logs/promptveil.log",
			},
		},
		Upstream: UpstreamConfig{
			OpenAI:    "https://api.openai.com",
			Anthropic: "https://api.anthropic.com",
			Ollama:    "http://localhost:11434",
			Timeout:   30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:              true,
			Path:                 "/ws",
			BroadcastRequests:    true,
			BroadcastDetections:  true,
			BroadcastConnections: true,
		},
	}
}
