package testutils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskhub-auth/internal/api"
	authmiddleware "github.com/phrazzld/taskhub-auth/internal/api/middleware"
	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/mocks"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/stretchr/testify/require"
)

// AuthConfig returns an auth configuration valid for tests.
func AuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:           "test-access-secret-that-is-32-chars-long",
		RefreshTokenSecret:          "test-refresh-secret-that-is-32-chars-long",
		AccessTokenLifetimeMinutes:  15,
		RefreshTokenLifetimeMinutes: 7 * 24 * 60,
		BcryptCost:                  4,
		CaseInsensitiveUsernames:    true,
	}
}

// AuthStack is the complete auth service over in-memory stores.
type AuthStack struct {
	Clock      *FakeClock
	Identities *mocks.IdentityStore
	Records    *mocks.RefreshRecordStore
	Hasher     *mocks.PasswordHasher
	Emitter    *events.InMemoryEventEmitter
	Metrics    *metrics.Metrics
	Issuer     *auth.TokenIssuer
	Verifier   *auth.CredentialVerifier
	Rotation   *auth.RotationEngine
	Revoker    *auth.SessionRevoker
	Handler    *api.AuthHandler
	Logs       *logger.Buffer
}

// NewAuthStack builds an AuthStack whose token issuer follows a fake clock
// starting at 2026-03-01 12:00 UTC.
func NewAuthStack(t *testing.T) *AuthStack {
	t.Helper()

	log, logs := logger.NewCapture()
	s := &AuthStack{
		Clock:      NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Identities: mocks.NewIdentityStore(),
		Records:    mocks.NewRefreshRecordStore(),
		Hasher:     &mocks.PasswordHasher{},
		Emitter:    events.NewInMemoryEventEmitter(log),
		Metrics:    metrics.New(),
		Logs:       logs,
	}
	s.Emitter.RegisterHandler(s.Metrics.SecurityEventHandler(log))

	issuer, err := auth.NewTokenIssuer(AuthConfig(), s.Records,
		auth.WithTimeFunc(s.Clock.Now), auth.WithIssuerLogger(log))
	require.NoError(t, err)
	s.Issuer = issuer
	s.Revoker = auth.NewSessionRevoker(s.Records, s.Emitter, s.Metrics, log)
	s.Rotation = auth.NewRotationEngine(issuer, s.Records, s.Identities, s.Emitter, s.Metrics, log)
	s.Verifier = auth.NewCredentialVerifier(nil, s.Identities, s.Hasher, s.Revoker, true, s.Metrics, log)
	s.Handler = api.NewAuthHandler(s.Verifier, s.Issuer, s.Rotation, s.Revoker)
	return s
}

// Router returns a router serving the API under /api with the same
// middleware order as the server.
func (s *AuthStack) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(authmiddleware.Trace(nil))
	r.Use(authmiddleware.Metrics(s.Metrics))
	r.Mount("/api", s.Handler.Routes(authmiddleware.NewAuthMiddleware(s.Issuer).Authenticate))
	return r
}

// Server starts an httptest server for the stack and closes it on cleanup.
func (s *AuthStack) Server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}
