// Package drafts stores per-row draft input (pending notes, close threat and
// action selections) keyed by session and record key, so the draft survives
// collapsing and re-expanding a row's detail panel within the same session.
// The store is scoped to the session that owns the view, not process-wide.
package drafts

import (
	"context"
	"sync"
)

// Draft is the pending, not-yet-submitted input for one row.
type Draft struct {
	Notes   string   `json:"notes" msgpack:"notes"`
	Threat  string   `json:"threat" msgpack:"threat"`
	Actions []string `json:"actions" msgpack:"actions"`
}

// Store is the draft persistence interface.
type Store interface {
	Get(ctx context.Context, session, key string) (*Draft, error)
	Put(ctx context.Context, session, key string, draft *Draft) error
	Delete(ctx context.Context, session string, keys ...string) error
	Clear(ctx context.Context, session string) error
}

// MemoryStore keeps drafts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Draft
}

// NewMemoryStore creates an empty in-memory draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]Draft)}
}

func (s *MemoryStore) Get(ctx context.Context, session, key string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if drafts, ok := s.sessions[session]; ok {
		if draft, ok := drafts[key]; ok {
			return &draft, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Put(ctx context.Context, session, key string, draft *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, ok := s.sessions[session]
	if !ok {
		drafts = make(map[string]Draft)
		s.sessions[session] = drafts
	}
	drafts[key] = *draft
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, session string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drafts, ok := s.sessions[session]; ok {
		for _, key := range keys {
			delete(drafts, key)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}
