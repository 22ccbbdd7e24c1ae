package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTracker marks live hosted sessions in Redis so a participant holds at most one session
// across instances. The TTL bounds how long a crashed instance can keep a participant locked out.
type SessionTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionTracker(client *redis.Client, ttl time.Duration) *SessionTracker {
	return &SessionTracker{client: client, ttl: ttl}
}

func (s *SessionTracker) Acquire(ctx context.Context, participantID string) (bool, error) {
	return s.client.SetNX(ctx, s.key(participantID), "1", s.ttl).Result()
}

func (s *SessionTracker) Release(ctx context.Context, participantID string) error {
	return s.client.Del(ctx, s.key(participantID)).Err()
}

func (s *SessionTracker) key(participantID string) string {
	return "quiz:session:" + participantID
}
