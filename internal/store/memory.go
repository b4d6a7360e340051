package store

import (
	"context"
	"sync"

	"github.com/banterlabs/banter/pkg/types"
)

// MemoryStore is an in-memory Store used by tests and the ephemeral REPL.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions []*types.Session
	messages map[string][]*types.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]*types.Message),
	}
}

func (s *MemoryStore) GetSessions(ctx context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Session, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

func (s *MemoryStore) SaveSessions(ctx context.Context, sessions []*types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make([]*types.Session, len(sessions))
	copy(s.sessions, sessions)
	return nil
}

func (s *MemoryStore) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	out := make([]*types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) SaveMessages(ctx context.Context, sessionID string, messages []*types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]*types.Message, len(messages))
	copy(msgs, messages)
	s.messages[sessionID] = msgs
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID == sessionID {
			found = true
			continue
		}
		kept = append(kept, sess)
	}
	s.sessions = kept
	delete(s.messages, sessionID)

	if !found {
		return ErrSessionNotFound
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
