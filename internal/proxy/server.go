// Package proxy is the HTTP gateway: it anonymizes request bodies on the
// way to an LLM provider and restores the original values in the response.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/audit"
	"github.com/promptveil/promptveil/internal/cache"
	"github.com/promptveil/promptveil/internal/config"
	"github.com/promptveil/promptveil/internal/engine"
	"github.com/promptveil/promptveil/internal/events"
	"github.com/promptveil/promptveil/internal/guard"
	"github.com/promptveil/promptveil/internal/logger"
	"github.com/promptveil/promptveil/internal/security"
	"github.com/promptveil/promptveil/internal/session"
	"github.com/promptveil/promptveil/internal/web"
)

// Server is the gateway server.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	guard    *guard.Guard
	cached   *cache.CachedGuard
	sessions session.Store
	audit    *audit.Store
	hub      *events.Hub
	limiter  *security.RateLimiter
	router   *mux.Router
	server   *http.Server
	started  time.Time
}

// New wires the gateway together. Every configuration problem (unknown
// detector, bad policy, unreachable Redis or Postgres) fails here, before
// the server accepts a single request.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	overlap, err := engine.ParseOverlapStrategy(cfg.Privacy.Overlap)
	if err != nil {
		return nil, err
	}

	g, err := guard.New(guard.Options{
		Detectors:  cfg.Privacy.Detectors,
		Policy:     cfg.Privacy.Policy,
		PolicyPath: cfg.Privacy.PolicyPath,
		Overlap:    overlap,
	}, log.WithComponent("guard"))
	if err != nil {
		return nil, fmt.Errorf("failed to create guard: %w", err)
	}

	sessions, err := newSessionStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	var cached *cache.CachedGuard
	if cfg.Cache.Enabled {
		backend, err := newCacheBackend(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		cached = cache.NewCachedGuard(g, backend, log.WithComponent("cache").Logger)
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("proxy"),
		guard:    g,
		cached:   cached,
		sessions: sessions,
		audit:    auditStore,
		hub:      events.NewHub(log.WithComponent("events").Logger),
		limiter:  security.NewRateLimiter(&cfg.RateLimit),
		router:   mux.NewRouter(),
		started:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func newSessionStore(cfg *config.Config, log *logger.Logger) (session.Store, error) {
	if cfg.Sessions.Backend == "redis" {
		return session.NewRedisStore(&session.Config{
			RedisURL:  cfg.Sessions.RedisURL,
			KeyPrefix: cfg.Sessions.KeyPrefix,
			TTL:       cfg.Sessions.TTL,
		}, log.WithComponent("sessions").Logger)
	}
	return session.NewMemoryStore(cfg.Sessions.TTL), nil
}

func newCacheBackend(cfg *config.Config, log *logger.Logger) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(&cache.Config{
			RedisURL:  cfg.Cache.RedisURL,
			KeyPrefix: cfg.Cache.KeyPrefix,
			TTL:       cfg.Cache.TTL,
		}, log.WithComponent("cache").Logger)
	}
	return cache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.Events.Enabled {
		s.router.HandleFunc(s.config.Events.Path, s.handleWebSocket).Methods("GET")
	}

	for prefix, handler := range map[string]http.HandlerFunc{
		"/openai":    s.handleOpenAIProxy,
		"/anthropic": s.handleAnthropicProxy,
		"/ollama":    s.handleOllamaProxy,
	} {
		sub := s.router.PathPrefix(prefix).Subrouter()
		sub.Use(s.loggingMiddleware)
		sub.Use(s.rateLimitMiddleware)
		sub.Use(s.privacyMiddleware)
		sub.PathPrefix("/").HandlerFunc(handler)
	}
}

// Start starts the HTTP server and the event hub.
func (s *Server) Start() error {
	s.logger.Info("Starting PromptVeil gateway",
		zap.Int("port", s.config.Server.Port),
		zap.String("policy", s.guard.Policy().Name),
		zap.Strings("detectors", s.guard.DetectorNames()),
		zap.String("upstream_openai", s.config.Upstream.OpenAI),
		zap.String("upstream_anthropic", s.config.Upstream.Anthropic),
		zap.String("upstream_ollama", s.config.Upstream.Ollama),
	)

	go s.hub.Run()
	if s.config.RateLimit.Enabled {
		s.limiter.StartCleanupRoutine()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the server and releases backends.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PromptVeil gateway")

	err := s.server.Shutdown(ctx)
	s.sessions.Close()
	if s.audit != nil {
		s.audit.Close()
	}
	return err
}

// Hub exposes the event hub for broadcasting from outside the package.
func (s *Server) Hub() *events.Hub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"promptveil",
		"privacy_enabled":%t,
		"policy":%q,
		"detectors":%d,
		"uptime":%q
	}`, s.config.Privacy.Enabled, s.guard.Policy().Name, len(s.guard.DetectorNames()), time.Since(s.started).Round(time.Second).String())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
