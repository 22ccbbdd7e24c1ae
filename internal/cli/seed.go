package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/bank"
	"live-quiz-service/internal/infra/postgres"
)

// NewSeedCmd copies the question bank (embedded or questions.file) into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg)
	if err := runMigrations(ctx, cfg, logger); err != nil {
		return err
	}

	questions, err := bank.NewLoader(cfg.Questions.File).LoadQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load bank: %w", err)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.NewQuestionLoader(pool).SaveQuestions(ctx, questions); err != nil {
		return err
	}
	logger.Info("question bank seeded", "questions", len(questions))
	return nil
}
