package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

const leaderboardKey = "quiz:leaderboard"

// LeaderboardCache stores the last computed leaderboard for a short TTL so results screens
// polling together cost one table scan.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context) (domain.Leaderboard, bool, error) {
	raw, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, err
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, err
	}
	return lb, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, lb domain.Leaderboard) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey, raw, c.ttl).Err()
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, leaderboardKey).Err()
}
