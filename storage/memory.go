package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStorage keeps conversations in a map. Useful for tests and as a
// stand-in when no database is configured.
type InMemoryStorage struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

var _ ConversationStorage = (*InMemoryStorage)(nil)

// NewInMemoryStorage creates an empty in-memory store.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{convs: make(map[string]*Conversation)}
}

// Save writes the conversation.
func (s *InMemoryStorage) Save(ctx context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *conv
	stored.UpdatedAt = time.Now()
	s.convs[conv.SessionID] = &stored
	return nil
}

// Load returns the conversation or ErrNotFound.
func (s *InMemoryStorage) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *conv
	return &out, nil
}

// Delete removes a session.
func (s *InMemoryStorage) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, sessionID)
	return nil
}

// List returns all session IDs, sorted.
func (s *InMemoryStorage) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *InMemoryStorage) Close() error { return nil }
