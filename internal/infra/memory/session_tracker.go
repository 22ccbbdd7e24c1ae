package memory

import (
	"context"
	"sync"
)

// SessionTracker is an in-memory implementation of app.SessionTracker.
type SessionTracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{active: make(map[string]struct{})}
}

func (s *SessionTracker) Acquire(_ context.Context, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[participantID]; ok {
		return false, nil
	}
	s.active[participantID] = struct{}{}
	return true, nil
}

func (s *SessionTracker) Release(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, participantID)
	return nil
}
