package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/mocks"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassword = "Sup3r-secret"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:           "access-secret-that-is-at-least-32-chars",
		RefreshTokenSecret:          "refresh-secret-that-is-at-least-32-chars",
		AccessTokenLifetimeMinutes:  15,
		RefreshTokenLifetimeMinutes: 7 * 24 * 60,
		BcryptCost:                  4,
		CaseInsensitiveUsernames:    true,
	}
}

// fakeClock is a settable clock shared by the issuer and the test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires the auth services over in-memory stores.
type fixture struct {
	clock      *fakeClock
	identities *mocks.IdentityStore
	records    *mocks.RefreshRecordStore
	hasher     *mocks.PasswordHasher
	issuer     *auth.TokenIssuer
	revoker    *auth.SessionRevoker
	rotation   *auth.RotationEngine
	verifier   *auth.CredentialVerifier
	emitter    *mocks.EventEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:      newFakeClock(),
		identities: mocks.NewIdentityStore(),
		records:    mocks.NewRefreshRecordStore(),
		hasher:     &mocks.PasswordHasher{},
		emitter:    &mocks.EventEmitter{},
	}
	f.emitter.On("EmitEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	issuer, err := auth.NewTokenIssuer(testAuthConfig(), f.records, auth.WithTimeFunc(f.clock.Now))
	require.NoError(t, err)
	f.issuer = issuer
	f.revoker = auth.NewSessionRevoker(f.records, f.emitter, nil, nil)
	f.rotation = auth.NewRotationEngine(issuer, f.records, f.identities, f.emitter, nil, nil)
	f.verifier = auth.NewCredentialVerifier(nil, f.identities, f.hasher, f.revoker, true, nil, nil)
	return f
}

// addIdentity stores an active identity whose password is testPassword.
func (f *fixture) addIdentity(t *testing.T, email, username string) *domain.Identity {
	t.Helper()
	identity, err := domain.NewIdentity(email, username, mocks.MockHash(testPassword), "")
	require.NoError(t, err)
	f.identities.Add(identity)
	return identity
}
