package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/shannon/internal/classify"
	"github.com/phrazzld/shannon/internal/config"
	"github.com/phrazzld/shannon/internal/events"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/platform/gemini"
	"github.com/phrazzld/shannon/internal/platform/memstore"
	"github.com/phrazzld/shannon/internal/platform/postgres"
	"github.com/phrazzld/shannon/internal/platform/tokens"
	"github.com/phrazzld/shannon/internal/service"
	"github.com/phrazzld/shannon/internal/service/auth"
	"github.com/phrazzld/shannon/internal/store"
	"github.com/phrazzld/shannon/internal/task"
)

// application holds the shared dependencies of the server and releases
// them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when memories live in process
	db *sql.DB

	memories   store.MemoryStore
	taskStore  *task.InMemoryTaskStore
	jwtService auth.JWTService
	connector  gmail.Connector
	classifier classify.Classifier
	tokens     tokens.Counter

	eventEmitter *events.InMemoryEventEmitter
	metrics      *task.Metrics
	taskRunner   *task.TaskRunner

	memoryService service.MemoryService
}

// newApplication builds every component from cfg. A configured database
// is opened and migrated; otherwise memories are kept in process.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	if err := app.setupMemoryStore(ctx); err != nil {
		return nil, err
	}

	app.connector, err = gmail.NewAPIConnector(gmail.APIConnectorConfig{
		Endpoint:         cfg.Gmail.Endpoint,
		FetchConcurrency: cfg.Gmail.FetchConcurrency,
		CacheSize:        cfg.Gmail.CacheSize,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize gmail connector: %w", err)
	}

	app.classifier, err = newClassifier(ctx, cfg.LLM, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	app.tokens = tokens.NewTiktokenCounter("", logger.With("component", "tokens"))

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.metrics = task.DefaultMetrics()
	app.eventEmitter.RegisterHandler(app.metrics,
		events.TypeTaskCreated, events.TypeTaskRunning, events.TypeTaskCompleted, events.TypeTaskFailed)

	app.taskStore = task.NewInMemoryTaskStore(cfg.Task.Retention())
	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:     cfg.Task.WorkerCount,
		QueueSize:       cfg.Task.QueueSize,
		JanitorInterval: cfg.Task.JanitorInterval(),
	}, logger)
	app.taskRunner.SetEventEmitter(app.eventEmitter)

	factory := task.NewGmailSyncJobFactory(task.GmailSyncDeps{
		Connector:  app.connector,
		Classifier: app.classifier,
		Store:      app.memories,
		Tokens:     app.tokens,
		BatchSize:  cfg.Task.ClassifyBatchSize,
		Logger:     logger,
	})

	app.memoryService, err = service.NewMemoryService(service.MemoryServiceDeps{
		Tasks:     app.taskRunner,
		Status:    task.NewStatusService(app.taskStore),
		SyncJobs:  factory,
		Memories:  app.memories,
		Connector: app.connector,
		Logger:    logger,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create memory service: %w", err)
	}

	if err := app.taskRunner.Start(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupMemoryStore selects the Postgres store when a database URL is
// configured and the in-process store otherwise.
func (app *application) setupMemoryStore(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.memories = memstore.New()
		app.logger.Info("using in-memory memory store")
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database connection established",
		"database", postgres.MaskURL(app.config.Database.URL))

	if err := postgres.Migrate(ctx, db, "up", app.logger); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.memories = postgres.NewPostgresMemoryStore(db, app.logger)
	return nil
}

// newClassifier returns the model-backed classifier when a model is
// configured and the heuristic one otherwise.
func newClassifier(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (classify.Classifier, error) {
	if !cfg.Enabled() {
		logger.Info("no language model configured, using heuristic classifier")
		return classify.NewHeuristic(), nil
	}

	c, err := gemini.NewClassifier(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM classifier: %w", err)
	}
	logger.Info("LLM classifier initialized", "model", cfg.ModelName)
	return c, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases application resources. It tolerates partially
// initialized applications.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
		app.db = nil
	}

	app.logger.Info("application shutdown completed")
}
