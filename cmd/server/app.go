package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/postgres"
	"github.com/phrazzld/taskhub-auth/internal/platform/redis"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/phrazzld/taskhub-auth/internal/store"
	"github.com/phrazzld/taskhub-auth/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// application holds the shared dependencies so they can be wired once and
// released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  goredis.UniversalClient

	identities store.IdentityStore
	records    store.RefreshRecordStore

	metrics  *metrics.Metrics
	emitter  *events.InMemoryEventEmitter
	issuer   *auth.TokenIssuer
	revoker  *auth.SessionRevoker
	verifier *auth.CredentialVerifier
	rotation *auth.RotationEngine

	runner *task.Runner
}

// newApplication wires every component. db must already be reachable. On
// failure everything acquired so far, db included, is released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.metrics.SecurityEventHandler(logger))

	app.identities = postgres.NewPostgresIdentityStore(db, logger)

	records, err := app.newRefreshRecordStore(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.records = records

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	app.issuer, err = auth.NewTokenIssuer(cfg.Auth, app.records, auth.WithIssuerLogger(logger))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	logger.Info("token issuer initialized",
		slog.Int("access_token_lifetime_minutes", cfg.Auth.AccessTokenLifetimeMinutes),
		slog.Int("refresh_token_lifetime_minutes", cfg.Auth.RefreshTokenLifetimeMinutes))

	app.revoker = auth.NewSessionRevoker(app.records, app.emitter, app.metrics, logger)
	app.rotation = auth.NewRotationEngine(app.issuer, app.records, app.identities, app.emitter, app.metrics, logger)
	app.verifier = auth.NewCredentialVerifier(db, app.identities, hasher, app.revoker,
		cfg.Auth.CaseInsensitiveUsernames, app.metrics, logger)

	app.runner, err = app.setupRunner()
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to set up task runner: %w", err)
	}

	logger.Info("application initialized", slog.String("refresh_backend", cfg.Store.RefreshBackend))
	return app, nil
}

// newRefreshRecordStore selects the refresh record backend from config.
func (app *application) newRefreshRecordStore(ctx context.Context) (store.RefreshRecordStore, error) {
	switch app.config.Store.RefreshBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     app.config.Store.RedisAddr,
			Password: app.config.Store.RedisPassword,
			DB:       app.config.Store.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		app.redis = client
		app.logger.Info("redis connection established", slog.Int("db", app.config.Store.RedisDB))
		return redis.NewRefreshRecordStore(client, app.config.Store.RedisKeyPrefix,
			redis.WithLogger(app.logger)), nil
	case "postgres", "":
		return postgres.NewPostgresRefreshRecordStore(app.db, app.logger), nil
	default:
		return nil, fmt.Errorf("unknown refresh record backend %q", app.config.Store.RefreshBackend)
	}
}

// setupRunner schedules the retention sweep when it is enabled.
func (app *application) setupRunner() (*task.Runner, error) {
	runner := task.NewRunner(task.DefaultRunnerConfig(), app.logger)
	runner.SetErrorHandler(func(t task.Task, err error) {
		app.logger.Error("background task failed",
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
	})

	if !app.config.Sweeper.Enabled {
		app.logger.Info("refresh record sweeper disabled")
		return runner, nil
	}

	sweeper := task.NewSweeper(app.records, app.metrics, app.logger)
	interval := time.Duration(app.config.Sweeper.IntervalMinutes) * time.Minute
	if err := runner.Schedule(sweeper, interval); err != nil {
		return nil, err
	}
	return runner, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down and releases resources.
func (app *application) Run(ctx context.Context) error {
	app.runner.Start()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse order of acquisition.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
