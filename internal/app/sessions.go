package app

import "context"

// SessionTracker guarantees at most one live hosted session per participant.
type SessionTracker interface {
	// Acquire reports false when the participant already holds a session.
	Acquire(ctx context.Context, participantID string) (bool, error)
	Release(ctx context.Context, participantID string) error
}
