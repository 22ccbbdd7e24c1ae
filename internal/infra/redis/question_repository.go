package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

// QuestionRepository caches the question pool in Redis and falls back to a loader on cache miss.
// The pool is stored as a JSON array: SET quiz:questions:pool <json> EX <ttl>
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	logger *slog.Logger
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration, logger *slog.Logger) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

const poolKey = "quiz:questions:pool"

func (r *QuestionRepository) Pool(ctx context.Context) ([]domain.Question, error) {
	if pool, ok := r.cached(ctx); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(pool)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, poolKey, raw, r.ttlWithJitter()).Err(); err != nil {
			// cache is best-effort; the loaded pool is still good
			r.logger.Warn("question pool cache write failed", "err", err)
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, poolKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("question pool cache read failed", "err", err)
		}
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	return pool, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
