package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/promptveil/promptveil/internal/config"
	"github.com/promptveil/promptveil/internal/logger"
)

// echoUpstream records what the gateway forwarded and echoes the body back,
// standing in for an LLM provider that repeats user input.
type echoUpstream struct {
	mu       sync.Mutex
	bodies   []string
	headers  []http.Header
	response string // when set, returned instead of the echo
}

func (u *echoUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.bodies = append(u.bodies, string(body))
		u.headers = append(u.headers, r.Header.Clone())
		response := u.response
		u.mu.Unlock()

		if response == "" {
			response = string(body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}
}

func (u *echoUpstream) lastBody() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.bodies) == 0 {
		return ""
	}
	return u.bodies[len(u.bodies)-1]
}

func (u *echoUpstream) lastHeader() http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.headers) == 0 {
		return nil
	}
	return u.headers[len(u.headers)-1]
}

func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Upstream.OpenAI = upstreamURL
	cfg.Events.Enabled = false

	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.sessions.Close() })
	return s
}

func TestProxyAnonymizesRequestAndRestoresResponse(t *testing.T) {
	upstream := &echoUpstream{}
	backend := httptest.NewServer(upstream.handler())
	defer backend.Close()

	s := newTestServer(t, backend.URL)

	body := `{"prompt":"mail jane.doe@example.com or call 555-123-4567"}`
	req := httptest.NewRequest("POST", "/openai/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	forwarded := upstream.lastBody()
	if strings.Contains(forwarded, "jane.doe@example.com") || strings.Contains(forwarded, "555-123-4567") {
		t.Errorf("PII reached the upstream: %q", forwarded)
	}
	if !strings.Contains(forwarded, "[EMAIL_1]") || !strings.Contains(forwarded, "[PHONE_1]") {
		t.Errorf("forwarded body missing placeholders: %q", forwarded)
	}

	// The upstream echoed the placeholders; the client must get originals.
	got := rec.Body.String()
	if got != body {
		t.Errorf("response = %q, want the original body restored", got)
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}

func TestProxyStripsProviderPrefix(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("{}"))
	}))
	defer backend.Close()

	s := newTestServer(t, backend.URL)

	req := httptest.NewRequest("POST", "/openai/v1/models", strings.NewReader(`{"q":1}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if gotPath != "/v1/models" {
		t.Errorf("upstream path = %q, want /v1/models", gotPath)
	}
}

func TestProxySessionMappingSpansRequests(t *testing.T) {
	upstream := &echoUpstream{}
	backend := httptest.NewServer(upstream.handler())
	defer backend.Close()

	s := newTestServer(t, backend.URL)

	// First request introduces the email and seeds the session mapping.
	first := httptest.NewRequest("POST", "/openai/v1/chat/completions",
		strings.NewReader(`{"prompt":"remember jane.doe@example.com"}`))
	first.Header.Set(SessionHeader, "conv-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	// Second request carries no PII, but the model echoes the placeholder
	// from earlier in the conversation.
	upstream.mu.Lock()
	upstream.response = `{"answer":"the address was [EMAIL_1]"}`
	upstream.mu.Unlock()

	second := httptest.NewRequest("POST", "/openai/v1/chat/completions",
		strings.NewReader(`{"prompt":"what was the address?"}`))
	second.Header.Set(SessionHeader, "conv-42")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, second)

	got := rec.Body.String()
	if !strings.Contains(got, "jane.doe@example.com") {
		t.Errorf("response = %q, want the placeholder restored from the session mapping", got)
	}
}

func TestProxyScrubsHeadersButKeepsUpstreamAuth(t *testing.T) {
	upstream := &echoUpstream{}
	backend := httptest.NewServer(upstream.handler())
	defer backend.Close()

	s := newTestServer(t, backend.URL)

	req := httptest.NewRequest("POST", "/openai/v1/chat/completions",
		strings.NewReader(`{"prompt":"mail a@b.co"}`))
	req.Header.Set("Authorization", "Bearer sk-secret")
	req.Header.Set("Cookie", "session=abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	headers := upstream.lastHeader()
	if headers.Get("Authorization") != "Bearer sk-secret" {
		t.Errorf("Authorization = %q, upstream auth must survive", headers.Get("Authorization"))
	}
	if headers.Get("Cookie") != "" {
		t.Errorf("Cookie = %q, want scrubbed", headers.Get("Cookie"))
	}
	if headers.Get(SessionHeader) != "" {
		t.Error("session header must not reach the upstream")
	}
}

func TestProxyUpstreamFailure(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1") // nothing listens here

	req := httptest.NewRequest("POST", "/openai/v1/chat", strings.NewReader(`{"q":"mail a@b.co"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "http://example.invalid")

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProviderFromPath(t *testing.T) {
	cases := map[string]string{
		"/openai/v1/chat": "openai",
		"/anthropic/v1":   "anthropic",
		"/ollama":         "ollama",
	}
	for path, want := range cases {
		if got := providerFromPath(path); got != want {
			t.Errorf("providerFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	if got := getClientIP(req); got != "10.1.2.3" {
		t.Errorf("got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := getClientIP(req); got != "203.0.113.9" {
		t.Errorf("got %q, want the first forwarded hop", got)
	}
}
