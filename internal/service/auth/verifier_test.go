package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

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

func validRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		Email:       "Ada@Example.com",
		Username:    "Ada_L",
		Password:    testPassword,
		DisplayName: "  Ada Lovelace ",
	}
}

func TestCredentialVerifier_Register(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	identity, err := f.verifier.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, identity.ID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "ada_l", identity.Username)
	assert.Equal(t, "Ada Lovelace", identity.DisplayName)
	assert.True(t, identity.Active)
	assert.Equal(t, mocks.MockHash(testPassword), identity.PasswordHash)

	stored, err := f.identities.GetByID(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.Email, stored.Email)
}

func TestCredentialVerifier_RegisterKeepsUsernameCaseWhenConfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	verifier := auth.NewCredentialVerifier(nil, f.identities, f.hasher, f.revoker, false, nil, nil)

	identity, err := verifier.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "Ada_L", identity.Username)
	assert.Equal(t, "ada@example.com", identity.Email)
}

func TestCredentialVerifier_RegisterConflictsSkipHashing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		email     string
		username  string
		wantField string
	}{
		{name: "email taken", email: "ADA@example.com", username: "someone", wantField: "email"},
		{name: "username taken", email: "other@example.com", username: "ADA_L", wantField: "username"},
		{name: "both taken reports email", email: "ada@example.com", username: "ada_l", wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addIdentity(t, "ada@example.com", "ada_l")

			in := validRegistration()
			in.Email = tt.email
			in.Username = tt.username

			identity, err := f.verifier.Register(context.Background(), in)
			assert.Nil(t, identity)

			var conflict *auth.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.wantField, conflict.Field)
			assert.ErrorIs(t, err, auth.ErrConflict)

			hashes, _, _ := f.hasher.Calls()
			assert.Zero(t, hashes, "password must not be hashed for a taken identity")
			assert.Zero(t, f.identities.CreateCallCount)
			assert.Equal(t, 1, f.identities.Len())
		})
	}
}

func TestCredentialVerifier_RegisterRaceMapsToConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.identities.CreateFn = func(context.Context, *domain.Identity) error {
		return store.ErrUsernameExists
	}

	_, err := f.verifier.Register(context.Background(), validRegistration())

	var conflict *auth.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)
}

func TestCredentialVerifier_RegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*auth.RegisterInput)
		field  string
	}{
		{name: "bad email", mutate: func(in *auth.RegisterInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "short username", mutate: func(in *auth.RegisterInput) { in.Username = "ab" }, field: "username"},
		{name: "username charset", mutate: func(in *auth.RegisterInput) { in.Username = "ada lovelace" }, field: "username"},
		{name: "weak password", mutate: func(in *auth.RegisterInput) { in.Password = "password" }, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validRegistration()
			tt.mutate(&in)

			_, err := f.verifier.Register(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Zero(t, f.identities.CreateCallCount)
		})
	}
}

func TestCredentialVerifier_Login(t *testing.T) {
	t.Parallel()

	for _, login := range []string{"ada@example.com", "ADA@Example.com", "ada", "ADA", " ada "} {
		t.Run(login, func(t *testing.T) {
			f := newFixture(t)
			want := f.addIdentity(t, "ada@example.com", "ada")

			got, err := f.verifier.Login(context.Background(), login, testPassword)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
		})
	}
}

func TestCredentialVerifier_LoginFailures(t *testing.T) {
	t.Parallel()

	t.Run("unknown identity runs a dummy compare", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.verifier.Login(context.Background(), "nobody@example.com", testPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, compares, dummies := f.hasher.Calls()
		assert.Zero(t, compares)
		assert.Equal(t, 1, dummies)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		f.addIdentity(t, "ada@example.com", "ada")

		_, err := f.verifier.Login(context.Background(), "ada", "Wr0ng-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive identity", func(t *testing.T) {
		f := newFixture(t)
		identity := f.addIdentity(t, "ada@example.com", "ada")
		require.NoError(t, f.identities.SetActive(context.Background(), identity.ID, false))

		_, err := f.verifier.Login(context.Background(), "ada", testPassword)
		assert.ErrorIs(t, err, auth.ErrAccountInactive)
	})

	t.Run("inactive identity with wrong password", func(t *testing.T) {
		f := newFixture(t)
		identity := f.addIdentity(t, "ada@example.com", "ada")
		require.NoError(t, f.identities.SetActive(context.Background(), identity.ID, false))

		_, err := f.verifier.Login(context.Background(), "ada", "Wr0ng-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("password over hash input limit", func(t *testing.T) {
		f := newFixture(t)
		f.addIdentity(t, "ada@example.com", "ada")

		_, err := f.verifier.Login(context.Background(), "ada", strings.Repeat("a", domain.MaxPasswordLength+1))
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, compares, dummies := f.hasher.Calls()
		assert.Zero(t, compares)
		assert.Equal(t, 1, dummies)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.verifier.Login(context.Background(), "", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.identities.GetByLoginFn = func(context.Context, string) (*domain.Identity, error) {
			return nil, errors.New("connection reset")
		}

		_, err := f.verifier.Login(context.Background(), "ada", testPassword)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestCredentialVerifier_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	identity := f.addIdentity(t, "ada@example.com", "ada")
	pair, err := f.issuer.Issue(ctx, identity)
	require.NoError(t, err)

	const newPassword = "N3w-passphrase"
	require.NoError(t, f.verifier.ChangePassword(ctx, identity.ID, testPassword, newPassword))

	_, err = f.verifier.Login(ctx, "ada", testPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.verifier.Login(ctx, "ada", newPassword)
	assert.NoError(t, err)

	_, err = f.rotation.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	f.emitter.AssertCalled(t, "EmitEvent", mock.Anything, mock.MatchedBy(func(e *events.SecurityEvent) bool {
		return e.Type == events.SessionsRevoked && e.Reason == auth.RevokeReasonPasswordChange && e.Count == 1
	}))
}

func TestCredentialVerifier_ChangePasswordRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		f := newFixture(t)
		identity := f.addIdentity(t, "ada@example.com", "ada")
		_, err := f.issuer.Issue(ctx, identity)
		require.NoError(t, err)

		err = f.verifier.ChangePassword(ctx, identity.ID, "Wr0ng-password", "N3w-passphrase")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		// sessions survive a failed change
		for _, r := range f.records.Records() {
			assert.False(t, r.Revoked)
		}
	})

	t.Run("weak new password", func(t *testing.T) {
		f := newFixture(t)
		identity := f.addIdentity(t, "ada@example.com", "ada")

		err := f.verifier.ChangePassword(ctx, identity.ID, testPassword, "weak")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown identity", func(t *testing.T) {
		f := newFixture(t)

		err := f.verifier.ChangePassword(ctx, uuid.New(), testPassword, "N3w-passphrase")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive identity", func(t *testing.T) {
		f := newFixture(t)
		identity := f.addIdentity(t, "ada@example.com", "ada")
		require.NoError(t, f.identities.SetActive(ctx, identity.ID, false))

		err := f.verifier.ChangePassword(ctx, identity.ID, testPassword, "N3w-passphrase")
		assert.ErrorIs(t, err, auth.ErrAccountInactive)
	})
}

func TestCredentialVerifier_Deactivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	identity := f.addIdentity(t, "ada@example.com", "ada")
	pair, err := f.issuer.Issue(ctx, identity)
	require.NoError(t, err)

	require.NoError(t, f.verifier.Deactivate(ctx, identity.ID))

	stored, err := f.verifier.Identity(ctx, identity.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	_, err = f.rotation.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	_, err = f.verifier.Login(ctx, "ada", testPassword)
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestCredentialVerifier_DeactivateUnknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.verifier.Deactivate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrIdentityNotFound)
}
