package app

import (
	"context"
	"errors"
	"log/slog"

	"live-quiz-service/internal/domain"
)

// CompletionListener is notified after a completion is newly recorded.
type CompletionListener interface {
	CompletionRecorded(ctx context.Context, p domain.Participant)
}

// CompletionRecorder is the server-side completion contract: it validates the reference,
// delegates to the registry and translates duplicates into a success outcome.
type CompletionRecorder struct {
	registry  *Registry
	questions *QuestionSource
	regrade   bool
	listeners []CompletionListener
	logger    *slog.Logger
}

type CompletionOption func(*CompletionRecorder)

// WithRegrade recomputes correctness and score from submitted selections; the client's score becomes advisory.
func WithRegrade(questions *QuestionSource) CompletionOption {
	return func(r *CompletionRecorder) {
		r.questions = questions
		r.regrade = questions != nil
	}
}

// WithListener registers l for newly recorded completions.
func WithListener(l CompletionListener) CompletionOption {
	return func(r *CompletionRecorder) {
		r.listeners = append(r.listeners, l)
	}
}

func NewCompletionRecorder(registry *Registry, logger *slog.Logger, opts ...CompletionOption) *CompletionRecorder {
	r := &CompletionRecorder{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status is the pre-flight check a session runs before becoming active.
func (r *CompletionRecorder) Status(ctx context.Context, participantID string) (domain.ParticipantStatus, error) {
	return r.registry.Status(ctx, participantID)
}

// Complete records c for participantID. Duplicates are not errors: they yield AlreadyRecorded.
func (r *CompletionRecorder) Complete(ctx context.Context, participantID string, c domain.Completion) (domain.CompletionOutcome, error) {
	if r.regrade && len(c.Answers) > 0 {
		graded, score, err := r.questions.Grade(ctx, c.Answers)
		if err != nil {
			return domain.CompletionOutcome{}, err
		}
		if score != c.Score {
			r.logger.Warn("client score differs from regraded score",
				"participant", participantID, "reported", c.Score, "graded", score)
		}
		c.Answers = graded
		c.Score = score
	}

	p, err := r.registry.RecordCompletion(ctx, participantID, c)
	switch {
	case errors.Is(err, domain.ErrAlreadyCompleted):
		r.logger.Info("duplicate completion ignored", "participant", participantID, "stored_score", p.Score)
		return domain.CompletionOutcome{AlreadyRecorded: true}, nil
	case err != nil:
		return domain.CompletionOutcome{}, err
	}

	r.logger.Info("completion recorded", "participant", participantID, "score", p.Score, "time", p.TotalTimeSeconds)
	for _, l := range r.listeners {
		l.CompletionRecorded(ctx, p)
	}
	return domain.CompletionOutcome{Recorded: true}, nil
}
