package domain

import "time"

// OptionCount is the number of options every question carries.
const OptionCount = 4

// Question is a multiple-choice question. CorrectOption never leaves the server.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
}

// PublicQuestion is the projection of a Question that is safe to hand to a session-holding client.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Participant is a registered quiz taker and its final outcome.
type Participant struct {
	ID               string         `json:"id"`
	DisplayName      string         `json:"name"`
	ContactHandle    string         `json:"contactHandle"`
	Phone            string         `json:"phone,omitempty"`
	Score            int            `json:"score"`
	TotalTimeSeconds float64        `json:"totalTimeSeconds"`
	Completed        bool           `json:"completed"`
	Answers          []AnswerRecord `json:"answers"`
	RegisteredAt     time.Time      `json:"registeredAt"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
}

// AnswerRecord is produced once per question during a session.
// An empty SelectedOption means the countdown expired without an answer.
type AnswerRecord struct {
	QuestionRef      string  `json:"questionId"`
	SelectedOption   string  `json:"selectedOption"`
	IsCorrect        bool    `json:"isCorrect"`
	TimeSpentSeconds float64 `json:"timeSpentSeconds" validate:"gte=0"`
}

// Registration is the input to participant registration.
type Registration struct {
	Name          string `json:"name" validate:"required,max=120"`
	ContactHandle string `json:"contactHandle" validate:"required,max=64"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
}

// ParticipantStatus is the only pre-completion view of a participant.
type ParticipantStatus struct {
	Completed bool `json:"completed"`
}

// Completion is the final score/time tuple reported for a participant.
type Completion struct {
	Score            int            `json:"score" validate:"gte=0"`
	TotalTimeSeconds float64        `json:"totalTimeSeconds" validate:"gte=0"`
	Answers          []AnswerRecord `json:"answers,omitempty" validate:"dive"`
}

// CompletionOutcome distinguishes a fresh write from a duplicate that left stored state untouched.
type CompletionOutcome struct {
	Recorded        bool `json:"recorded"`
	AlreadyRecorded bool `json:"alreadyRecorded"`
}

// LeaderboardEntry is a public row of the results table.
type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	Name             string  `json:"name"`
	Score            int     `json:"score"`
	TotalTimeSeconds float64 `json:"totalTimeSeconds"`
	Completed        bool    `json:"completed"`
}

// LeaderboardStats summarises every fetched participant record.
type LeaderboardStats struct {
	TotalParticipants     int     `json:"totalParticipants"`
	CompletedParticipants int     `json:"completedParticipants"`
	AverageScore          float64 `json:"averageScore"`
	AverageTime           float64 `json:"averageTime"`
}

// Leaderboard is the ranked results view.
type Leaderboard struct {
	Results   []LeaderboardEntry `json:"results"`
	Stats     LeaderboardStats   `json:"stats"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
