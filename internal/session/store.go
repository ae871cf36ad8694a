// Package session persists placeholder mappings between the request and
// response legs of a proxied LLM call, keyed by an opaque session ID.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/promptveil/promptveil/internal/engine"
)

// ErrNotFound is returned when no mapping exists for a session ID.
var ErrNotFound = errors.New("session mapping not found")

// Store saves and restores mappings. Implementations must be safe for
// concurrent use. Merge keeps existing keys on conflict: placeholder
// counters restart per anonymize call, so a later call can legitimately
// produce a key the session has already seen; the first recorded original
// wins and the caller is expected to reuse the merged mapping for
// de-anonymization.
type Store interface {
	Save(ctx context.Context, sessionID string, mapping engine.Mapping) error
	Load(ctx context.Context, sessionID string) (engine.Mapping, error)
	Merge(ctx context.Context, sessionID string, mapping engine.Mapping) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// entry is a stored mapping with its expiry deadline.
type entry struct {
	mapping   engine.Mapping
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
}

// NewMemoryStore creates a memory-backed store. A zero ttl means entries
// never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
	}
}

// Save implements Store. The mapping is copied so the caller may keep
// mutating its own reference.
func (s *MemoryStore) Save(_ context.Context, sessionID string, mapping engine.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = entry{mapping: cloneMapping(mapping), expiresAt: s.deadline()}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (engine.Mapping, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return cloneMapping(e.mapping), nil
}

// Merge implements Store.
func (s *MemoryStore) Merge(_ context.Context, sessionID string, mapping engine.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		s.sessions[sessionID] = entry{mapping: cloneMapping(mapping), expiresAt: s.deadline()}
		return nil
	}

	merged := cloneMapping(e.mapping)
	for placeholder, original := range mapping {
		if _, exists := merged[placeholder]; !exists {
			merged[placeholder] = original
		}
	}
	s.sessions[sessionID] = entry{mapping: merged, expiresAt: s.deadline()}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) deadline() time.Time {
	if s.ttl == 0 {
		return time.Time{}
	}
	return time.Now().Add(s.ttl)
}

func cloneMapping(m engine.Mapping) engine.Mapping {
	out := make(engine.Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
