package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/mocks"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/phrazzld/taskhub-auth/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func issuePair(t *testing.T, f *fixture) (*domain.Identity, *auth.TokenPair) {
	t.Helper()
	identity := f.addIdentity(t, "ada@example.com", "ada")
	pair, err := f.issuer.Issue(context.Background(), identity)
	require.NoError(t, err)
	return identity, pair
}

func TestRotationEngine_RotateIssuesNewPair(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	identity, pair := issuePair(t, f)

	f.clock.Advance(time.Minute)
	rotated, err := f.rotation.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	assert.Equal(t, identity.ID, rotated.Identity.ID)

	old, err := f.records.GetByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.Revoked)

	fresh, err := f.records.GetByToken(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	assert.False(t, fresh.Revoked)
}

func TestRotationEngine_SecondUseIsRevoked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	identity, pair := issuePair(t, f)

	_, err := f.rotation.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = f.rotation.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	f.emitter.AssertCalled(t, "EmitEvent", mock.Anything, mock.MatchedBy(func(e *events.SecurityEvent) bool {
		return e.Type == events.ReplayDetected && e.IdentityID == identity.ID
	}))
}

func TestRotationEngine_ConcurrentRotationsHaveOneWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	_, pair := issuePair(t, f)

	const callers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures []error
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.rotation.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, failures, callers-1)
	for _, err := range failures {
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	}
	// the original record plus exactly one replacement
	assert.Equal(t, 2, f.records.Len())
}

func TestRotationEngine_LostRaceIsRevoked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	_, pair := issuePair(t, f)

	// The record reads as active but the conditional write finds it consumed.
	f.records.RevokeIfActiveFn = func(context.Context, string) (bool, error) { return false, nil }

	_, err := f.rotation.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	f.emitter.AssertCalled(t, "EmitEvent", mock.Anything, mocks.EventOfType(events.ReplayDetected))
}

func TestRotationEngine_RevokeAllInvalidatesPriorTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	identity, first := issuePair(t, f)
	second, err := f.issuer.Issue(ctx, identity)
	require.NoError(t, err)

	n, err := f.revoker.RevokeAllForIdentity(ctx, identity.ID, auth.RevokeReasonLogoutAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err := f.rotation.Rotate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	}
}

func TestRotationEngine_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture, pair *auth.TokenPair, identity *domain.Identity) string
		want    error
	}{
		{
			name: "garbage token",
			prepare: func(*testing.T, *fixture, *auth.TokenPair, *domain.Identity) string {
				return "garbage"
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "access token",
			prepare: func(_ *testing.T, _ *fixture, pair *auth.TokenPair, _ *domain.Identity) string {
				return pair.AccessToken
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "signed but unrecorded",
			prepare: func(t *testing.T, f *fixture, pair *auth.TokenPair, _ *domain.Identity) string {
				f.records.GetByTokenFn = func(context.Context, string) (*domain.RefreshRecord, error) {
					return nil, store.ErrRefreshRecordNotFound
				}
				return pair.RefreshToken
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "embedded expiry past",
			prepare: func(_ *testing.T, f *fixture, pair *auth.TokenPair, _ *domain.Identity) string {
				f.clock.Advance(8 * 24 * time.Hour)
				return pair.RefreshToken
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "empty token",
			prepare: func(*testing.T, *fixture, *auth.TokenPair, *domain.Identity) string {
				return ""
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "record expired before token",
			prepare: func(_ *testing.T, f *fixture, pair *auth.TokenPair, _ *domain.Identity) string {
				f.records.GetByTokenFn = func(_ context.Context, token string) (*domain.RefreshRecord, error) {
					return &domain.RefreshRecord{
						ID:         uuid.New(),
						Token:      token,
						IdentityID: pair.Identity.ID,
						ExpiresAt:  f.clock.Now().Add(-time.Second),
					}, nil
				}
				return pair.RefreshToken
			},
			want: auth.ErrTokenExpired,
		},
		{
			name: "inactive identity",
			prepare: func(t *testing.T, f *fixture, pair *auth.TokenPair, identity *domain.Identity) string {
				require.NoError(t, f.identities.SetActive(context.Background(), identity.ID, false))
				return pair.RefreshToken
			},
			want: auth.ErrTokenInvalid,
		},
		{
			name: "missing identity",
			prepare: func(_ *testing.T, f *fixture, pair *auth.TokenPair, _ *domain.Identity) string {
				f.identities.GetByIDFn = func(context.Context, uuid.UUID) (*domain.Identity, error) {
					return nil, store.ErrIdentityNotFound
				}
				return pair.RefreshToken
			},
			want: auth.ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			identity, pair := issuePair(t, f)
			token := tt.prepare(t, f, pair, identity)

			rotated, err := f.rotation.Rotate(ctx, token)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, rotated)
		})
	}
}

func TestRotationEngine_StoreFailureIsNotATokenError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, pair := issuePair(t, f)
	f.records.GetByTokenFn = func(context.Context, string) (*domain.RefreshRecord, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.rotation.Rotate(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.False(t, auth.IsTokenError(err))
}
