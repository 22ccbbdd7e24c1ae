package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

// QuestionLoader loads the question bank from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, options, correct_option FROM questions ORDER BY id`)
	if err != nil {
		return nil, domain.StorageFailure("load questions", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options, &q.CorrectOption); err != nil {
			return nil, domain.StorageFailure("scan question", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("load questions", err)
	}
	return questions, nil
}

// SaveQuestions upserts the bank in one transaction.
func (l *QuestionLoader) SaveQuestions(ctx context.Context, questions []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`INSERT INTO questions (id, prompt, options, correct_option) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET prompt = EXCLUDED.prompt, options = EXCLUDED.options, correct_option = EXCLUDED.correct_option`,
			q.ID, q.Prompt, q.Options, q.CorrectOption)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for range questions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert question: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}
