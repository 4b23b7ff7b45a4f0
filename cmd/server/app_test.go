package main

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/platform/postgres"
	"github.com/phrazzld/taskhub-auth/internal/platform/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(backend, redisAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, LogLevel: "debug", ShutdownTimeoutSeconds: 1},
		Auth: config.AuthConfig{
			AccessTokenSecret:           "test-access-secret-that-is-32-chars-long",
			RefreshTokenSecret:          "test-refresh-secret-that-is-32-chars-long",
			AccessTokenLifetimeMinutes:  15,
			RefreshTokenLifetimeMinutes: 7 * 24 * 60,
			BcryptCost:                  4,
			CaseInsensitiveUsernames:    true,
		},
		Store: config.StoreConfig{
			RefreshBackend: backend,
			RedisAddr:      redisAddr,
			RedisKeyPrefix: "test",
		},
		Sweeper: config.SweeperConfig{Enabled: true, IntervalMinutes: 60},
	}
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	return db, mock
}

func TestNewApplication_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	db, mock := newMockDB(t)
	log, _ := logger.NewCapture()

	app, err := newApplication(context.Background(), testConfig("redis", mr.Addr()), log, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.cleanup()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	assert.IsType(t, &redis.RefreshRecordStore{}, app.records)
	assert.NotNil(t, app.redis)
}

func TestNewApplication_PostgresBackend(t *testing.T) {
	db, mock := newMockDB(t)
	log, _ := logger.NewCapture()

	app, err := newApplication(context.Background(), testConfig("postgres", ""), log, db)
	require.NoError(t, err)
	app.cleanup()

	assert.IsType(t, &postgres.PostgresRefreshRecordStore{}, app.records)
	assert.Nil(t, app.redis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApplication_FailsWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	db, mock := newMockDB(t)
	log, _ := logger.NewCapture()

	_, err := newApplication(context.Background(), testConfig("redis", addr), log, db)
	require.ErrorContains(t, err, "failed to connect to redis")
	// The database is released on failure.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApplication_RejectsUnknownBackend(t *testing.T) {
	db, _ := newMockDB(t)
	log, _ := logger.NewCapture()

	_, err := newApplication(context.Background(), testConfig("etcd", ""), log, db)
	assert.ErrorContains(t, err, `unknown refresh record backend "etcd"`)
}

func TestRouter(t *testing.T) {
	mr := miniredis.RunT(t)
	db, _ := newMockDB(t)
	log, _ := logger.NewCapture()

	app, err := newApplication(context.Background(), testConfig("redis", mr.Addr()), log, db)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)

	t.Run("health", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	})

	t.Run("trace header", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	})

	t.Run("refresh with garbage token", func(t *testing.T) {
		resp, err := srv.Client().Post(srv.URL+"/api/auth/refresh", "application/json",
			strings.NewReader(`{"refresh_token":"not-a-jwt"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, string(body), `"reason":"TokenInvalid"`)
	})

	t.Run("protected route without token", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/api/me")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "taskhub_auth_http_request_duration_seconds")
	})
}

func TestRun_ShutsDownWhenContextCancelled(t *testing.T) {
	mr := miniredis.RunT(t)
	db, mock := newMockDB(t)
	log, logs := logger.NewCapture()

	cfg := testConfig("redis", mr.Addr())
	app, err := newApplication(context.Background(), cfg, log, db)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, app.Run(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, logs.String(), "server shutdown completed")
}

func TestHandleMigrations_RejectsUnknownCommand(t *testing.T) {
	db, _ := newMockDB(t)
	t.Cleanup(func() { _ = db.Close() })
	log, _ := logger.NewCapture()

	err := handleMigrations(context.Background(), db, "sideways", log)
	assert.ErrorContains(t, err, `unknown migration command "sideways"`)
}
