package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// QuestionRepository loads the full question pool (from cache/backing store).
type QuestionRepository interface {
	Pool(ctx context.Context) ([]domain.Question, error)
}

// QuestionSource serves the fixed question pool and per-session random subsets.
type QuestionSource struct {
	repo  QuestionRepository
	count int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionSource(repo QuestionRepository, count int) *QuestionSource {
	return NewQuestionSourceWithRand(repo, count, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionSourceWithRand is used by tests that need a deterministic draw.
func NewQuestionSourceWithRand(repo QuestionRepository, count int, rnd *rand.Rand) *QuestionSource {
	return &QuestionSource{repo: repo, count: count, rnd: rnd}
}

// Count is the configured number of questions per session.
func (s *QuestionSource) Count() int {
	return s.count
}

// All returns the whole pool or ErrEmptyPool.
func (s *QuestionSource) All(ctx context.Context) ([]domain.Question, error) {
	pool, err := s.repo.Pool(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}
	return pool, nil
}

// Select draws n questions in presentation order, answers included. Only trusted callers may use it.
func (s *QuestionSource) Select(ctx context.Context, n int) ([]domain.Question, error) {
	pool, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectRandomSubset(pool, n, s.rnd), nil
}

// SelectPublic draws the configured number of questions with answers stripped.
func (s *QuestionSource) SelectPublic(ctx context.Context) ([]domain.PublicQuestion, error) {
	selected, err := s.Select(ctx, s.count)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicQuestion, len(selected))
	for i, q := range selected {
		out[i] = StripAnswer(q)
	}
	return out, nil
}

// Grade recomputes correctness of submitted answers against the answer key.
// Answers referring to unknown questions are marked incorrect.
func (s *QuestionSource) Grade(ctx context.Context, answers []domain.AnswerRecord) ([]domain.AnswerRecord, int, error) {
	pool, err := s.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	key := make(map[string]string, len(pool))
	for _, q := range pool {
		key[q.ID] = q.CorrectOption
	}

	graded := make([]domain.AnswerRecord, len(answers))
	score := 0
	for i, a := range answers {
		correct, ok := key[a.QuestionRef]
		a.IsCorrect = ok && a.SelectedOption != "" && a.SelectedOption == correct
		if a.IsCorrect {
			score++
		}
		graded[i] = a
	}
	return graded, score, nil
}

// SelectRandomSubset returns n distinct questions drawn uniformly without replacement,
// in a random order. A pool smaller than n is returned whole, shuffled.
func SelectRandomSubset(pool []domain.Question, n int, rnd *rand.Rand) []domain.Question {
	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}
	perm := rnd.Perm(len(pool))
	out := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		out[i] = pool[perm[i]]
	}
	return out
}

// StripAnswer projects q without its correct option.
func StripAnswer(q domain.Question) domain.PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return domain.PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: options}
}
