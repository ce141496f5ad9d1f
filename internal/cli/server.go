package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/auth"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/infra/postgres"
	"quiz-session-service/internal/infra/queue"
	redisinfra "quiz-session-service/internal/infra/redis"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// components holds the wired service and whatever must be closed on shutdown.
type components struct {
	service *app.SessionService
	events  app.EventSubscriber
	closers []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logrus.WithField("component", "server")

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	if err != nil {
		return fmt.Errorf("%w (set auth.jwt_secret or QUIZ_JWT_SECRET)", err)
	}

	comps, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	router := transport.NewRouter(comps.service, comps.events, tokens, transport.RouterOptions{})
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown did not complete cleanly")
	}
	comps.service.Drain()
	log.Info("Server stopped")
	return nil
}

// wire picks storage, cache, event and notification backends from config.
// Without postgres and redis everything runs in memory with sample data.
func wire(ctx context.Context, cfg config.Config) (*components, error) {
	comps := &components{}
	log := logrus.WithField("component", "wiring")

	var (
		store  app.Store
		loader memory.QuizLoader
		users  app.UserDirectory
	)
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		comps.closers = append(comps.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db); err != nil {
			comps.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			comps.close()
			return nil, err
		}
		comps.closers = append(comps.closers, pool.Close)

		store = postgres.NewSessionStore(db)
		loader = postgres.NewQuizLoader(pool)
		users = postgres.NewUserDirectory(pool)
		log.Info("Using postgres storage")
	} else {
		store = memory.NewSessionStore()
		loader = memory.NewStaticQuizLoader(sampleQuizzes()...)
		users = memory.NewUserDirectory(sampleUsers()...)
		log.Warn("Postgres not configured, using in-memory storage with sample data")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizRepo app.QuizRepository
		events   interface {
			app.EventPublisher
			app.EventSubscriber
		}
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		comps.closers = append(comps.closers, func() { _ = redisClient.Close() })
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		events = redisinfra.NewEventBus(redisClient)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		events = memory.NewEventHub()
	}

	var notifier app.Notifier
	switch cfg.Notifications.Queue {
	case "asynq":
		if redisClient == nil {
			comps.close()
			return nil, fmt.Errorf("notifications.queue=asynq requires redis")
		}
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		comps.closers = append(comps.closers, func() { _ = client.Close() })
		notifier = queue.NewNotifier(client, cfg.Notifications.QueueName)
	case "", "none":
		notifier = memory.NewNotifier()
	default:
		comps.close()
		return nil, fmt.Errorf("unknown notifications.queue %q", cfg.Notifications.Queue)
	}

	settings := app.DefaultSettings()
	if cfg.Sessions.CodeAttempts > 0 {
		settings.CodeAttempts = cfg.Sessions.CodeAttempts
	}
	settings.MaxTeams = cfg.Sessions.MaxTeams
	settings.RequireStartedForScores = cfg.Sessions.RequireStartedForScores
	settings.NotifyTimeout = config.TTLDuration(cfg.Sessions.NotifyTimeout, settings.NotifyTimeout)

	comps.service = app.NewSessionService(store, quizRepo, users,
		app.WithSettings(settings),
		app.WithNotifier(notifier),
		app.WithPublisher(events),
	)
	comps.events = events
	return comps, nil
}

// sampleQuizzes seeds in-memory runs; production quizzes come from postgres.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:      1,
			OwnerID: 1,
			Name:    "General Knowledge",
			Questions: []domain.Question{
				{
					ID:   1,
					Text: "What is 2 + 2?",
					Payload: domain.MultipleChoice{Options: []domain.Option{
						{ID: 1, Text: "3"},
						{ID: 2, Text: "4", IsCorrect: true},
						{ID: 3, Text: "5"},
					}},
				},
				{ID: 2, Text: "Capital of France?", Payload: domain.TextInput{MaxLength: 64, CorrectAnswer: "Paris"}},
				{ID: 3, Text: "Boiling point of water in °C?", Payload: domain.Slider{Min: 0, Max: 200, Step: 1, CorrectValue: 100}},
			},
		},
	}
}

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: 1, Username: "host", NotificationsEnabled: true},
		{ID: 2, Username: "alice", NotificationsEnabled: true},
		{ID: 3, Username: "bob", NotificationsEnabled: true},
		{ID: 4, Username: "carol", NotificationsEnabled: false},
	}
}
