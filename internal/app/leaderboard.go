package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// LeaderboardCache holds a short-lived leaderboard snapshot.
type LeaderboardCache interface {
	Get(ctx context.Context) (domain.Leaderboard, bool, error)
	Set(ctx context.Context, lb domain.Leaderboard) error
	Invalidate(ctx context.Context) error
}

// LeaderboardService computes rankings on demand and pushes fresh snapshots to feed subscribers.
type LeaderboardService struct {
	registry *Registry
	cache    LeaderboardCache
	feed     *Feed
	now      func() time.Time
	logger   *slog.Logger
}

// NewLeaderboardService builds the aggregator. cache may be nil.
func NewLeaderboardService(registry *Registry, cache LeaderboardCache, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		registry: registry,
		cache:    cache,
		feed:     NewFeed(),
		now:      time.Now,
		logger:   logger,
	}
}

// Compute returns the leaderboard, served from cache when a snapshot is fresh.
func (s *LeaderboardService) Compute(ctx context.Context) (domain.Leaderboard, error) {
	if s.cache != nil {
		lb, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("leaderboard cache read failed", "err", err)
		} else if ok {
			return lb, nil
		}
	}

	participants, err := s.registry.All(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb := ComputeLeaderboard(participants, s.now().UTC())

	if s.cache != nil {
		if err := s.cache.Set(ctx, lb); err != nil {
			s.logger.Warn("leaderboard cache write failed", "err", err)
		}
	}
	return lb, nil
}

// Subscribe returns a channel of leaderboard snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Compute(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(lb)
	return ch, cancel, nil
}

// CompletionRecorded drops the cached snapshot and broadcasts a recomputed one.
func (s *LeaderboardService) CompletionRecorded(ctx context.Context, _ domain.Participant) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("leaderboard cache invalidate failed", "err", err)
		}
	}
	if s.feed.Len() == 0 {
		return
	}
	lb, err := s.Compute(ctx)
	if err != nil {
		s.logger.Error("leaderboard recompute failed", "err", err)
		return
	}
	s.feed.Publish(lb)
}

// ComputeLeaderboard ranks by score descending then time ascending. Statistics cover every record,
// including participants still in progress.
func ComputeLeaderboard(participants []domain.Participant, now time.Time) domain.Leaderboard {
	sorted := make([]domain.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].TotalTimeSeconds < sorted[j].TotalTimeSeconds
	})

	var (
		completed int
		scoreSum  float64
		timeSum   float64
	)
	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = domain.LeaderboardEntry{
			Rank:             i + 1,
			Name:             p.DisplayName,
			Score:            p.Score,
			TotalTimeSeconds: p.TotalTimeSeconds,
			Completed:        p.Completed,
		}
		if p.Completed {
			completed++
		}
		scoreSum += float64(p.Score)
		timeSum += p.TotalTimeSeconds
	}

	stats := domain.LeaderboardStats{
		TotalParticipants:     len(sorted),
		CompletedParticipants: completed,
	}
	if n := len(sorted); n > 0 {
		stats.AverageScore = scoreSum / float64(n)
		stats.AverageTime = timeSum / float64(n)
	}
	return domain.Leaderboard{Results: entries, Stats: stats, UpdatedAt: now}
}
