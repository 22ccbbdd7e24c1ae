// Package bank ships the default question bank and loads alternative banks from JSON files.
package bank

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"live-quiz-service/internal/domain"
)

//go:embed questions.json
var defaultBank []byte

// Loader reads questions from a JSON array. An empty path selects the embedded bank.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	raw := defaultBank
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read question bank: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes and validates a question bank.
func Parse(raw []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question %d: missing id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) != domain.OptionCount {
			return nil, fmt.Errorf("question %s: expected %d options, got %d", q.ID, domain.OptionCount, len(q.Options))
		}
		if !q.HasOption(q.CorrectOption) {
			return nil, fmt.Errorf("question %s: correct option is not one of its options", q.ID)
		}
	}
	return questions, nil
}
