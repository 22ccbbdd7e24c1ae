package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute, discardLogger())

	pool, err := repo.Pool(context.Background())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if loader.calls != 1 || len(pool) != 2 {
		t.Fatalf("expected loader called once with 2 questions, calls=%d len=%d", loader.calls, len(pool))
	}
	if !mr.Exists(poolKey) {
		t.Fatalf("expected pool key to be set")
	}

	// Second call should hit cache, loader not incremented.
	pool, err = repo.Pool(context.Background())
	if err != nil {
		t.Fatalf("pool 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if pool[1].CorrectOption != "Paris" {
		t.Fatalf("cached pool lost the answer key: %+v", pool[1])
	}
}

func TestQuestionRepositoryReloadsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute, discardLogger())

	_, _ = repo.Pool(context.Background())
	mr.FastForward(2 * time.Minute)
	_, _ = repo.Pool(context.Background())

	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

func TestQuestionRepositoryServesWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(client, loader, time.Minute, discardLogger())

	pool, err := repo.Pool(context.Background())
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(pool))
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectOption: "4"},
		{ID: "q2", Prompt: "Capital of France?", Options: []string{"Rome", "Paris", "Berlin", "Madrid"}, CorrectOption: "Paris"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
