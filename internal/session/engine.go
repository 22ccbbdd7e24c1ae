package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"live-quiz-service/internal/domain"
)

// QuestionSource supplies the session's question subset, answers included.
type QuestionSource interface {
	Select(ctx context.Context, n int) ([]domain.Question, error)
}

// Recorder is the completion endpoint as seen by a session.
type Recorder interface {
	Status(ctx context.Context, participantID string) (domain.ParticipantStatus, error)
	Complete(ctx context.Context, participantID string, c domain.Completion) (domain.CompletionOutcome, error)
}

// Config tunes session timing.
type Config struct {
	QuestionCount   int
	QuestionSeconds int
	// Tick is the wall-clock length of one countdown second.
	Tick          time.Duration
	SubmitTimeout time.Duration
	SubmitRetries uint64
	Clock         Clock
}

func (c Config) withDefaults() Config {
	if c.QuestionCount <= 0 {
		c.QuestionCount = 15
	}
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = 5
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 5 * time.Second
	}
	return c
}

// EventKind names a session notification.
type EventKind string

const (
	EventBlocked      EventKind = "blocked"
	EventQuestion     EventKind = "question"
	EventTick         EventKind = "tick"
	EventRejected     EventKind = "rejected"
	EventCompleted    EventKind = "completed"
	EventSubmitFailed EventKind = "submitFailed"
)

// Event is emitted to the session's presenter. Question never carries the correct option.
type Event struct {
	Kind        EventKind              `json:"kind"`
	Index       int                    `json:"index"`
	Total       int                    `json:"total"`
	SecondsLeft int                    `json:"secondsLeft"`
	Question    *domain.PublicQuestion `json:"question,omitempty"`
	Outcome     *Outcome               `json:"outcome,omitempty"`
	Message     string                 `json:"message,omitempty"`
}

// Outcome is the terminal view of a session.
type Outcome struct {
	State           State             `json:"state"`
	Trigger         Trigger           `json:"trigger"`
	Completion      domain.Completion `json:"completion"`
	AlreadyRecorded bool              `json:"alreadyRecorded"`
}

// Engine runs timed quiz sessions.
type Engine struct {
	cfg       Config
	questions QuestionSource
	recorder  Recorder
	logger    *slog.Logger
}

func NewEngine(cfg Config, questions QuestionSource, recorder Recorder, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg.withDefaults(), questions: questions, recorder: recorder, logger: logger}
}

// Run drives one participant's session until it is submitted, blocked, or submission fails.
// Selections arrive on answers. Cancelling ctx is the unload trigger: a forced completion is still
// attempted on a detached context.
func (e *Engine) Run(ctx context.Context, participantID string, answers <-chan string, notify func(Event)) (Outcome, error) {
	if notify == nil {
		notify = func(Event) {}
	}
	m := NewMachine(participantID, e.cfg.QuestionSeconds)

	status, err := e.recorder.Status(ctx, participantID)
	if err != nil {
		return outcomeOf(m), fmt.Errorf("check status: %w", err)
	}
	if status.Completed {
		m.Block()
		notify(Event{Kind: EventBlocked, Message: domain.ErrAlreadyCompleted.Error()})
		return outcomeOf(m), domain.ErrAlreadyCompleted
	}

	questions, err := e.questions.Select(ctx, e.cfg.QuestionCount)
	if err != nil {
		return outcomeOf(m), fmt.Errorf("load questions: %w", err)
	}
	if err := m.Begin(questions); err != nil {
		return outcomeOf(m), err
	}
	e.logger.Debug("session active", "participant", participantID, "questions", m.QuestionCount(), "budget", m.Budget())

	ticker := e.cfg.Clock.NewTicker(e.cfg.Tick)
	defer ticker.Stop()
	deadline := e.cfg.Clock.NewTimer(time.Duration(m.Budget()) * e.cfg.Tick)
	defer deadline.Stop()

	notify(questionEvent(m))
	for m.State() == StateActive {
		select {
		case <-ctx.Done():
			m.Abandon()
		case <-deadline.C():
			m.Expire()
		case option, ok := <-answers:
			if !ok {
				// presenter stopped sending; countdowns still drive the session
				answers = nil
				continue
			}
			if _, err := m.Answer(option); err != nil {
				notify(Event{Kind: EventRejected, Index: m.Index(), Total: m.QuestionCount(), SecondsLeft: m.Remaining(), Message: err.Error()})
				continue
			}
			ticker.Reset(e.cfg.Tick)
			if m.State() == StateActive {
				notify(questionEvent(m))
			}
		case <-ticker.C():
			if m.Tick() {
				if m.State() == StateActive {
					notify(questionEvent(m))
				}
				continue
			}
			notify(Event{Kind: EventTick, Index: m.Index(), Total: m.QuestionCount(), SecondsLeft: m.Remaining()})
		}
	}

	return e.submit(ctx, m, notify)
}

func (e *Engine) submit(ctx context.Context, m *Machine, notify func(Event)) (Outcome, error) {
	result := m.Result()
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SubmitTimeout)
	defer cancel()

	var recorded domain.CompletionOutcome
	op := func() error {
		out, err := e.recorder.Complete(submitCtx, m.ParticipantID(), result)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		recorded = out
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.cfg.SubmitRetries), submitCtx)
	if err := backoff.Retry(op, policy); err != nil {
		e.logger.Warn("completion submit failed", "participant", m.ParticipantID(), "trigger", m.Trigger().String(), "err", err)
		notify(Event{Kind: EventSubmitFailed, Message: "failed to save quiz results"})
		return outcomeOf(m), fmt.Errorf("record completion: %w", err)
	}

	m.MarkSubmitted()
	out := outcomeOf(m)
	out.AlreadyRecorded = recorded.AlreadyRecorded
	e.logger.Info("session submitted", "participant", m.ParticipantID(), "trigger", m.Trigger().String(),
		"score", result.Score, "time", result.TotalTimeSeconds, "already_recorded", recorded.AlreadyRecorded)
	notify(Event{Kind: EventCompleted, Total: m.QuestionCount(), Outcome: &out})
	return out, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrParticipantNotFound) ||
		errors.Is(err, domain.ErrInvalidParticipantID) ||
		errors.Is(err, domain.ErrInvalidInput)
}

func questionEvent(m *Machine) Event {
	q, _ := m.Current()
	pub := domain.PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
	return Event{Kind: EventQuestion, Index: m.Index(), Total: m.QuestionCount(), SecondsLeft: m.Remaining(), Question: &pub}
}

func outcomeOf(m *Machine) Outcome {
	out := Outcome{State: m.State(), Trigger: m.Trigger()}
	if m.State() == StateCompleting || m.State() == StateSubmitted {
		out.Completion = m.Result()
	}
	return out
}
