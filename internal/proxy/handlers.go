package proxy

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/engine"
)

func (s *Server) handleOpenAIProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyTo(w, r, "/openai", s.config.Upstream.OpenAI)
}

func (s *Server) handleAnthropicProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyTo(w, r, "/anthropic", s.config.Upstream.Anthropic)
}

func (s *Server) handleOllamaProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyTo(w, r, "/ollama", s.config.Upstream.Ollama)
}

// proxyTo forwards the (already anonymized) request to the provider and
// restores original values in the buffered response body using the session
// mapping the privacy middleware stashed in the request context.
func (s *Server) proxyTo(w http.ResponseWriter, r *http.Request, prefix, upstream string) {
	target, err := url.Parse(upstream)
	if err != nil {
		s.logger.Error("Invalid upstream URL",
			zap.String("upstream", upstream),
			zap.Error(err))
		http.Error(w, `{"error":"invalid upstream configuration"}`, http.StatusBadGateway)
		return
	}

	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	mapping, _ := r.Context().Value(contextKeyMapping).(engine.Mapping)

	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.Director = func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		req.URL.Path = strings.TrimPrefix(req.URL.Path, prefix)
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}
		req.Host = target.Host
		req.Header.Del(SessionHeader)
		// Ask for an identity response so the body can be rewritten. A
		// gzip body is handled below as a fallback for upstreams that
		// compress regardless.
		req.Header.Set("Accept-Encoding", "identity")
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if len(mapping) == 0 {
			return nil
		}
		return restoreResponseBody(resp, mapping, s)
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error("Upstream request failed",
			zap.String("request_id", requestID),
			zap.String("upstream", upstream),
			zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream request failed"}`))
	}

	proxy.ServeHTTP(w, r)
}

// restoreResponseBody buffers the upstream response and replaces every
// placeholder with its original value. Placeholders are plain literals, so
// values the model echoes back come out exactly as the client sent them.
func restoreResponseBody(resp *http.Response, mapping engine.Mapping, s *Server) error {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}

	gzipped := resp.Header.Get("Content-Encoding") == "gzip"
	if gzipped {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			// Not actually gzip; pass through untouched.
			resp.Body = io.NopCloser(bytes.NewReader(body))
			return nil
		}
		body, err = io.ReadAll(gr)
		gr.Close()
		if err != nil {
			return err
		}
	}

	restored := s.guard.Deanonymize(string(body), mapping)
	out := []byte(restored)

	if gzipped {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(out); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		out = buf.Bytes()
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}
