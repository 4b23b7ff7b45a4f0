package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// RegisterInput is the data needed to create an identity.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// CredentialVerifier registers identities and checks their passwords.
type CredentialVerifier struct {
	db         *sql.DB
	identities store.IdentityStore
	hasher     PasswordHasher
	revoker    *SessionRevoker
	foldCase   bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewCredentialVerifier creates a verifier.
// db is used to run password changes in a transaction; when nil they run
// directly against identities. foldUsernameCase lower-cases usernames on
// registration and login. m may be nil.
func NewCredentialVerifier(
	db *sql.DB,
	identities store.IdentityStore,
	hasher PasswordHasher,
	revoker *SessionRevoker,
	foldUsernameCase bool,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CredentialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{
		db:         db,
		identities: identities,
		hasher:     hasher,
		revoker:    revoker,
		foldCase:   foldUsernameCase,
		metrics:    m,
		logger:     logger.With(slog.String("component", "credential_verifier")),
	}
}

// Register validates input, rejects taken emails and usernames before doing any
// hashing, then stores a new active identity.
func (v *CredentialVerifier) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	identity, err := v.register(ctx, in)
	v.metrics.Registration(err == nil)
	return identity, err
}

func (v *CredentialVerifier) register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	log := logger.FromContextOrDefault(ctx, v.logger)

	if err := domain.ValidateRegistration(in.Email, in.Username, in.Password, in.DisplayName).Err(); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	username := domain.NormalizeUsername(in.Username, v.foldCase)

	conflicts, err := v.identities.FindConflicts(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check identity conflicts: %w", err)
	}
	if conflicts.Email {
		return nil, &ConflictError{Field: "email"}
	}
	if conflicts.Username {
		return nil, &ConflictError{Field: "username"}
	}

	hash, err := v.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	identity, err := domain.NewIdentity(email, username, hash, in.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := v.identities.Create(ctx, identity); err != nil {
		// A concurrent registration can pass the conflict check first.
		switch {
		case errors.Is(err, store.ErrEmailExists):
			return nil, &ConflictError{Field: "email"}
		case errors.Is(err, store.ErrUsernameExists):
			return nil, &ConflictError{Field: "username"}
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	log.Info("identity registered", slog.String("identity_id", identity.ID.String()))
	return identity, nil
}

// Login returns the identity whose email or username matches and whose
// password verifies. It has no side effects on failure.
func (v *CredentialVerifier) Login(ctx context.Context, emailOrUsername, password string) (*domain.Identity, error) {
	identity, err := v.login(ctx, emailOrUsername, password)
	v.metrics.Login(err == nil)
	return identity, err
}

func (v *CredentialVerifier) login(ctx context.Context, emailOrUsername, password string) (*domain.Identity, error) {
	log := logger.FromContextOrDefault(ctx, v.logger)

	if err := domain.ValidateLogin(emailOrUsername, password).Err(); err != nil {
		return nil, err
	}
	// No stored hash can match a password longer than the bcrypt input limit.
	if len(password) > domain.MaxPasswordLength {
		v.hasher.CompareDummy(password)
		log.Debug("login failed: password exceeds hash input limit")
		return nil, ErrInvalidCredentials
	}

	identity, err := v.identities.GetByLogin(ctx, domain.NormalizeLogin(emailOrUsername, v.foldCase))
	if err != nil {
		if store.IsNotFoundError(err) {
			v.hasher.CompareDummy(password)
			log.Debug("login failed: unknown identity")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	if err := v.hasher.Compare(identity.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Debug("login failed: password mismatch", slog.String("identity_id", identity.ID.String()))
		}
		return nil, err
	}

	if !identity.Active {
		log.Info("login refused for inactive identity", slog.String("identity_id", identity.ID.String()))
		return nil, ErrAccountInactive
	}

	return identity, nil
}

// ChangePassword replaces the password of an active identity after verifying the
// current one, then revokes every session of that identity before returning.
func (v *CredentialVerifier) ChangePassword(
	ctx context.Context,
	identityID uuid.UUID,
	currentPassword, newPassword string,
) error {
	log := logger.FromContextOrDefault(ctx, v.logger)

	if err := domain.ValidatePasswordChange(currentPassword, newPassword).Err(); err != nil {
		return err
	}

	err := v.withIdentities(ctx, func(ctx context.Context, identities store.IdentityStore) error {
		identity, err := identities.GetByID(ctx, identityID)
		if err != nil {
			if store.IsNotFoundError(err) {
				return ErrInvalidCredentials
			}
			return fmt.Errorf("failed to load identity: %w", err)
		}
		if !identity.Active {
			return ErrAccountInactive
		}
		if err := v.hasher.Compare(identity.PasswordHash, currentPassword); err != nil {
			return err
		}

		hash, err := v.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		return identities.UpdatePasswordHash(ctx, identityID, hash)
	})
	if err != nil {
		return err
	}

	if _, err := v.revoker.RevokeAllForIdentity(ctx, identityID, RevokeReasonPasswordChange); err != nil {
		return err
	}

	log.Info("password changed", slog.String("identity_id", identityID.String()))
	return nil
}

// Deactivate marks an identity inactive and revokes all of its sessions.
func (v *CredentialVerifier) Deactivate(ctx context.Context, identityID uuid.UUID) error {
	if err := v.identities.SetActive(ctx, identityID, false); err != nil {
		return fmt.Errorf("failed to deactivate identity: %w", err)
	}

	if _, err := v.revoker.RevokeAllForIdentity(ctx, identityID, RevokeReasonDeactivated); err != nil {
		return err
	}

	logger.FromContextOrDefault(ctx, v.logger).Info("identity deactivated",
		slog.String("identity_id", identityID.String()))
	return nil
}

// Identity loads an identity by ID.
func (v *CredentialVerifier) Identity(ctx context.Context, identityID uuid.UUID) (*domain.Identity, error) {
	return v.identities.GetByID(ctx, identityID)
}

// withIdentities runs fn in a transaction when a database is configured.
func (v *CredentialVerifier) withIdentities(
	ctx context.Context,
	fn func(ctx context.Context, identities store.IdentityStore) error,
) error {
	if v.db == nil {
		return fn(ctx, v.identities)
	}
	return store.RunInTransaction(ctx, v.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, v.identities.WithTx(tx))
	})
}
