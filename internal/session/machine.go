package session

import (
	"fmt"

	"live-quiz-service/internal/domain"
)

// State is a quiz session lifecycle state.
type State int

const (
	StateLoading State = iota
	StateActive
	StateCompleting
	StateSubmitted
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	case StateSubmitted:
		return "submitted"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for c := StateLoading; c <= StateBlocked; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Trigger records which event moved the session into Completing.
type Trigger int

const (
	TriggerNone Trigger = iota
	// TriggerNatural fires when the last question is answered or times out.
	TriggerNatural
	// TriggerDeadline fires when the session-wide budget elapses.
	TriggerDeadline
	// TriggerUnload fires when the participant abandons the session.
	TriggerUnload
)

func (t Trigger) String() string {
	switch t {
	case TriggerNatural:
		return "natural"
	case TriggerDeadline:
		return "deadline"
	case TriggerUnload:
		return "unload"
	default:
		return "none"
	}
}

// MarshalText renders the trigger name.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Trigger) UnmarshalText(text []byte) error {
	for c := TriggerNone; c <= TriggerUnload; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown completion trigger %q", text)
}

// Forced reports whether the completion was not the participant finishing every question.
func (t Trigger) Forced() bool {
	return t == TriggerDeadline || t == TriggerUnload
}

// Machine is the per-participant session state machine. Time is measured in countdown ticks of one
// second each. It is not safe for concurrent use; the Engine drives it from a single goroutine.
type Machine struct {
	participantID   string
	questionSeconds int

	questions []domain.Question
	index     int
	score     int
	elapsed   int
	answers   []domain.AnswerRecord
	remaining int

	state   State
	trigger Trigger
	guard   Guard
}

// NewMachine returns a machine in StateLoading.
func NewMachine(participantID string, questionSeconds int) *Machine {
	if questionSeconds <= 0 {
		questionSeconds = 1
	}
	return &Machine{participantID: participantID, questionSeconds: questionSeconds, state: StateLoading}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Trigger() Trigger { return m.trigger }
func (m *Machine) Index() int { return m.index }
func (m *Machine) Remaining() int { return m.remaining }
func (m *Machine) QuestionCount() int { return len(m.questions) }
func (m *Machine) ParticipantID() string { return m.participantID }

// Budget is the session-wide bound in seconds: question count times per-question duration.
func (m *Machine) Budget() int {
	return len(m.questions) * m.questionSeconds
}

// Current returns the question being shown.
func (m *Machine) Current() (domain.Question, bool) {
	if m.state != StateActive || m.index >= len(m.questions) {
		return domain.Question{}, false
	}
	return m.questions[m.index], true
}

// Block moves a loading session to the absorbing Blocked state.
func (m *Machine) Block() {
	if m.state == StateLoading {
		m.state = StateBlocked
	}
}

// Begin moves Loading to Active(0).
func (m *Machine) Begin(questions []domain.Question) error {
	if m.state != StateLoading {
		return domain.ErrSessionClosed
	}
	if len(questions) == 0 {
		return domain.ErrEmptyPool
	}
	m.questions = questions
	m.index = 0
	m.answers = make([]domain.AnswerRecord, 0, len(questions))
	m.remaining = m.questionSeconds
	m.state = StateActive
	return nil
}

// Answer records a selection for the current question and advances. An empty option is a skip.
func (m *Machine) Answer(option string) (domain.AnswerRecord, error) {
	q, ok := m.Current()
	if !ok {
		return domain.AnswerRecord{}, domain.ErrSessionClosed
	}
	if option != "" && !q.HasOption(option) {
		return domain.AnswerRecord{}, domain.ErrInvalidOption
	}
	return m.advance(q, option, m.questionSeconds-m.remaining), nil
}

// Tick counts the countdown down by one second. At zero the question advances unanswered and
// Tick reports true.
func (m *Machine) Tick() bool {
	q, ok := m.Current()
	if !ok {
		return false
	}
	m.remaining--
	if m.remaining > 0 {
		return false
	}
	m.advance(q, "", m.questionSeconds)
	return true
}

// Expire fires the session-wide deadline.
func (m *Machine) Expire() bool {
	return m.complete(TriggerDeadline)
}

// Abandon fires the unload trigger.
func (m *Machine) Abandon() bool {
	return m.complete(TriggerUnload)
}

func (m *Machine) advance(q domain.Question, option string, spent int) domain.AnswerRecord {
	if spent < 0 {
		spent = 0
	}
	if spent > m.questionSeconds {
		spent = m.questionSeconds
	}
	rec := domain.AnswerRecord{
		QuestionRef:      q.ID,
		SelectedOption:   option,
		IsCorrect:        option != "" && option == q.CorrectOption,
		TimeSpentSeconds: float64(spent),
	}
	m.answers = append(m.answers, rec)
	m.elapsed += spent
	if rec.IsCorrect {
		m.score++
	}
	m.index++
	m.remaining = m.questionSeconds
	if m.index >= len(m.questions) {
		m.complete(TriggerNatural)
	}
	return rec
}

// complete moves Active to Completing. Only the first trigger acts.
func (m *Machine) complete(t Trigger) bool {
	if m.state != StateActive || !m.guard.Fire() {
		return false
	}
	m.state = StateCompleting
	m.trigger = t
	return true
}

// Result is the completion payload. A forced completion with no answers reports score 0 and the full
// budget as time, since no measurement exists yet.
func (m *Machine) Result() domain.Completion {
	answers := make([]domain.AnswerRecord, len(m.answers))
	copy(answers, m.answers)
	if m.trigger.Forced() && len(answers) == 0 {
		return domain.Completion{Score: 0, TotalTimeSeconds: float64(m.Budget()), Answers: answers}
	}
	return domain.Completion{Score: m.score, TotalTimeSeconds: float64(m.elapsed), Answers: answers}
}

// MarkSubmitted moves Completing to Submitted.
func (m *Machine) MarkSubmitted() {
	if m.state == StateCompleting {
		m.state = StateSubmitted
	}
}
