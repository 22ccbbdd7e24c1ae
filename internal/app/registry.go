package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// ParticipantStore abstracts how participant records are persisted (in-memory, Postgres, MongoDB).
// Implementations must enforce contact handle uniqueness and the completed false->true transition
// with the storage layer's own atomic primitives.
type ParticipantStore interface {
	// Create assigns an ID and inserts p, or returns ErrDuplicateParticipant.
	Create(ctx context.Context, p domain.Participant) (domain.Participant, error)
	Get(ctx context.Context, id string) (domain.Participant, error)
	// Complete applies c only if the record is not completed yet. Otherwise it returns the stored
	// record together with ErrAlreadyCompleted.
	Complete(ctx context.Context, id string, c domain.Completion, at time.Time) (domain.Participant, error)
	List(ctx context.Context) ([]domain.Participant, error)
}

// Registry owns participant records.
type Registry struct {
	store ParticipantStore
	now   func() time.Time
}

func NewRegistry(store ParticipantStore) *Registry {
	return NewRegistryWithClock(store, time.Now)
}

// NewRegistryWithClock is test-only for deterministic timestamps.
func NewRegistryWithClock(store ParticipantStore, now func() time.Time) *Registry {
	return &Registry{store: store, now: now}
}

// Register creates a participant with a zero score.
func (r *Registry) Register(ctx context.Context, reg domain.Registration) (domain.Participant, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.ContactHandle = strings.TrimSpace(reg.ContactHandle)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := validateStruct(reg); err != nil {
		return domain.Participant{}, err
	}

	return r.store.Create(ctx, domain.Participant{
		DisplayName:   reg.Name,
		ContactHandle: reg.ContactHandle,
		Phone:         reg.Phone,
		Answers:       []domain.AnswerRecord{},
		RegisteredAt:  r.now().UTC(),
	})
}

// Status exposes only whether the participant has completed.
func (r *Registry) Status(ctx context.Context, id string) (domain.ParticipantStatus, error) {
	if strings.TrimSpace(id) == "" {
		return domain.ParticipantStatus{}, domain.ErrInvalidParticipantID
	}
	p, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.ParticipantStatus{}, err
	}
	return domain.ParticipantStatus{Completed: p.Completed}, nil
}

// RecordCompletion stores the outcome once. A repeated call returns the existing record and ErrAlreadyCompleted.
func (r *Registry) RecordCompletion(ctx context.Context, id string, c domain.Completion) (domain.Participant, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	if err := validateStruct(c); err != nil {
		return domain.Participant{}, err
	}
	if c.Answers == nil {
		c.Answers = []domain.AnswerRecord{}
	}
	p, err := r.store.Complete(ctx, id, c, r.now().UTC())
	if err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
		return domain.Participant{}, err
	}
	return p, err
}

// All returns every participant record.
func (r *Registry) All(ctx context.Context) ([]domain.Participant, error) {
	return r.store.List(ctx)
}
