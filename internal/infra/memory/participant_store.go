package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore. A single mutex makes the
// uniqueness check and the completion transition atomic.
type ParticipantStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Participant
	byHandle map[string]string
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		byID:     make(map[string]*domain.Participant),
		byHandle: make(map[string]string),
	}
}

func (s *ParticipantStore) Create(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHandle[p.ContactHandle]; ok {
		return domain.Participant{}, domain.ErrDuplicateParticipant
	}
	p.ID = uuid.NewString()
	stored := p
	s.byID[p.ID] = &stored
	s.byHandle[p.ContactHandle] = p.ID
	return clone(stored), nil
}

func (s *ParticipantStore) Get(_ context.Context, id string) (domain.Participant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return clone(*p), nil
}

func (s *ParticipantStore) Complete(_ context.Context, id string, c domain.Completion, at time.Time) (domain.Participant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if p.Completed {
		return clone(*p), domain.ErrAlreadyCompleted
	}
	p.Score = c.Score
	p.TotalTimeSeconds = c.TotalTimeSeconds
	p.Answers = append([]domain.AnswerRecord(nil), c.Answers...)
	p.Completed = true
	completedAt := at
	p.CompletedAt = &completedAt
	return clone(*p), nil
}

// List returns participants in registration order.
func (s *ParticipantStore) List(_ context.Context) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, clone(*p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func clone(p domain.Participant) domain.Participant {
	answers := make([]domain.AnswerRecord, len(p.Answers))
	copy(answers, p.Answers)
	p.Answers = answers
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		p.CompletedAt = &at
	}
	return p
}
