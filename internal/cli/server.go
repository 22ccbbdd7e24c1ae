package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/bank"
	"live-quiz-service/internal/infra/memory"
	mongostore "live-quiz-service/internal/infra/mongo"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logging"
	"live-quiz-service/internal/session"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(deps),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildDeps picks a backend per concern from what the config enables and wires the services.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (transport.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (transport.Deps, func(), error) {
		cleanup()
		return transport.Deps{}, func() {}, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		closers = append(closers, pool.Close)
	}

	var loader memory.QuestionLoader = bank.NewLoader(cfg.Questions.File)
	if pool != nil {
		loader = postgres.NewQuestionLoader(pool)
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, poolTTL, logger)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, poolTTL)
	}

	var store app.ParticipantStore
	switch {
	case cfg.Mongo.URI != "":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fail(fmt.Errorf("connect mongo: %w", err))
		}
		closers = append(closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		mongoStore := mongostore.NewParticipantStore(client.Database(cfg.Mongo.Database))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		store = mongoStore
		logger.Info("participant store", "backend", "mongo")
	case cfg.Postgres.URL != "":
		db := openBun(cfg.Postgres.URL)
		closers = append(closers, func() { _ = db.Close() })
		store = postgres.NewParticipantStore(db)
		logger.Info("participant store", "backend", "postgres")
	default:
		store = memory.NewParticipantStore()
		logger.Warn("participant store is in memory; records are lost on restart")
	}

	var (
		cache    app.LeaderboardCache
		sessions app.SessionTracker
	)
	if redisClient != nil {
		cache = redisinfra.NewLeaderboardCache(redisClient, config.TTLDuration(cfg.Quiz.LeaderboardTTL, 2*time.Second))
		sessions = redisinfra.NewSessionTracker(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		sessions = memory.NewSessionTracker()
	}

	questions := app.NewQuestionSource(questionRepo, cfg.Quiz.QuestionCount)
	registry := app.NewRegistry(store)
	leaderboard := app.NewLeaderboardService(registry, cache, logger)

	opts := []app.CompletionOption{app.WithListener(leaderboard)}
	if cfg.Quiz.Regrade {
		opts = append(opts, app.WithRegrade(questions))
	}
	recorder := app.NewCompletionRecorder(registry, logger, opts...)

	engine := session.NewEngine(session.Config{
		QuestionCount:   cfg.Quiz.QuestionCount,
		QuestionSeconds: cfg.Quiz.QuestionSeconds,
		Tick:            config.TTLDuration(cfg.Quiz.Tick, time.Second),
		SubmitTimeout:   config.TTLDuration(cfg.Quiz.SubmitTimeout, 5*time.Second),
		SubmitRetries:   cfg.Quiz.SubmitRetries,
	}, questions, recorder, logger)

	return transport.Deps{
		Questions:   questions,
		Registry:    registry,
		Recorder:    recorder,
		Leaderboard: leaderboard,
		Engine:      engine,
		Sessions:    sessions,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, cleanup, nil
}
