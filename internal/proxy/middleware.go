package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/audit"
	"github.com/promptveil/promptveil/internal/engine"
	"github.com/promptveil/promptveil/internal/events"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeySessionID contextKey = "session_id"
	contextKeyMapping   contextKey = "mapping"
)

// SessionHeader carries the caller's mapping session ID. Without it every
// request gets a fresh session and responses are restored with only the
// mapping produced for that one request.
const SessionHeader = "X-Veil-Session"

// responseWriter captures status and size for access logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// loggingMiddleware assigns a request ID, logs the request, and publishes a
// request event to the dashboard.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := newRequestID()

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		s.logger.Info("Request processed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", duration),
			zap.String("client_ip", getClientIP(r)),
		)

		if s.config.Events.Enabled && s.config.Events.BroadcastRequests {
			s.hub.BroadcastEvent(events.Event{
				Type:      events.TypeRequestLog,
				Timestamp: time.Now(),
				RequestID: requestID,
				Data: events.RequestLogEvent{
					RequestID:    requestID,
					Method:       r.Method,
					Path:         r.URL.Path,
					StatusCode:   wrapped.statusCode,
					ClientIP:     getClientIP(r),
					Duration:     duration,
					RequestSize:  r.ContentLength,
					ResponseSize: wrapped.size,
				},
			})
		}
	})
}

// rateLimitMiddleware rejects clients over their per-IP budget.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(getClientIP(r)) {
			s.logger.Warn("Rate limit exceeded", zap.String("client_ip", getClientIP(r)))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// privacyMiddleware anonymizes the request body before it reaches the
// upstream handler and records the placeholder mapping for the response leg.
//
// The whole body is treated as one text. None of the built-in patterns can
// match across a double quote, so placeholders never straddle JSON string
// boundaries and the body stays valid JSON.
func (s *Server) privacyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Privacy.Enabled || r.Body == nil || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		requestID, _ := r.Context().Value(contextKeyRequestID).(string)
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			s.logger.Error("Failed to read request body", zap.String("request_id", requestID), zap.Error(err))
			http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
			return
		}

		start := time.Now()
		text := string(body)

		var anonymized string
		var mapping engine.Mapping
		if s.cached != nil {
			anonymized, mapping = s.cached.Anonymize(r.Context(), text)
		} else {
			anonymized, mapping = s.guard.Anonymize(text)
		}
		elapsed := time.Since(start)

		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			sessionID = requestID
		}

		effective := mapping
		if len(mapping) > 0 {
			if err := s.sessions.Merge(r.Context(), sessionID, mapping); err != nil {
				s.logger.Error("Failed to persist session mapping",
					zap.String("request_id", requestID),
					zap.Error(err))
			} else if merged, err := s.sessions.Load(r.Context(), sessionID); err == nil {
				effective = merged
			}
		} else if merged, err := s.sessions.Load(r.Context(), sessionID); err == nil {
			// No new placeholders, but earlier requests in this session may
			// have produced some that the model now echoes back.
			effective = merged
		}

		if s.config.Privacy.HeaderScrubbing.Enabled {
			s.scrubHeaders(r)
		}

		ctx := context.WithValue(r.Context(), contextKeySessionID, sessionID)
		ctx = context.WithValue(ctx, contextKeyMapping, effective)
		r = r.WithContext(ctx)

		newBody := []byte(anonymized)
		r.Body = io.NopCloser(bytes.NewReader(newBody))
		r.ContentLength = int64(len(newBody))

		if len(mapping) > 0 {
			s.recordAnonymization(r, requestID, sessionID, text, elapsed)
		}

		next.ServeHTTP(w, r)
	})
}

// scrubHeaders removes configured sensitive headers. Upstream auth headers
// are left in place when preserve_upstream_auth is set, since the provider
// still has to authenticate the proxied call.
func (s *Server) scrubHeaders(r *http.Request) {
	for _, name := range s.config.Privacy.HeaderScrubbing.Headers {
		canonical := http.CanonicalHeaderKey(name)
		if r.Header.Get(canonical) == "" {
			continue
		}
		if s.config.Privacy.HeaderScrubbing.PreserveUpstreamAuth && isUpstreamAuthHeader(canonical) {
			continue
		}
		r.Header.Del(canonical)
	}
}

func isUpstreamAuthHeader(canonical string) bool {
	switch canonical {
	case "Authorization", "X-Api-Key":
		return true
	}
	return false
}

// recordAnonymization reports one anonymized request to the dashboard and
// the audit trail. Only entity counts travel; never matched values.
func (s *Server) recordAnonymization(r *http.Request, requestID, sessionID, original string, elapsed time.Duration) {
	report := s.guard.Report(original)
	provider := providerFromPath(r.URL.Path)

	total := 0
	for _, n := range report.Summary {
		total += n
	}

	if s.config.Events.Enabled && s.config.Events.BroadcastDetections {
		s.hub.BroadcastEvent(events.Event{
			Type:      events.TypeAnonymization,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: events.AnonymizationEvent{
				RequestID:         requestID,
				SessionID:         sessionID,
				Provider:          provider,
				Path:              r.URL.Path,
				EntityCounts:      report.Summary,
				TotalPlaceholders: total,
				Risk:              string(report.Risk),
				ProcessingMS:      float64(elapsed.Microseconds()) / 1000.0,
			},
		})
	}

	if s.audit != nil {
		counts, err := json.Marshal(report.Summary)
		if err != nil {
			counts = []byte("{}")
		}
		record := &audit.Record{
			RequestID:     requestID,
			SessionID:     sessionID,
			Provider:      provider,
			Policy:        s.guard.Policy().Name,
			EntityCounts:  string(counts),
			TotalEntities: total,
			Risk:          string(report.Risk),
			TextChars:     len(original),
			DurationMS:    float64(elapsed.Microseconds()) / 1000.0,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Insert(ctx, record); err != nil {
			s.logger.Error("Failed to write audit record",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}
}

// providerFromPath extracts the provider prefix from a gateway path.
func providerFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.Index(trimmed, "/"); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// getClientIP extracts the client IP, honoring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// newRequestID returns a random 16-hex-char identifier.
func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
