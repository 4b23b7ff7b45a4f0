package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

const identityColumns = `id, email, username, password_hash, active, display_name, created_at, updated_at`

// PostgresIdentityStore implements store.IdentityStore on PostgreSQL.
type PostgresIdentityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresIdentityStore creates an identity store on db, which may be a pool or a transaction.
// If logger is nil, slog.Default() is used.
func NewPostgresIdentityStore(db store.DBTX, logger *slog.Logger) *PostgresIdentityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresIdentityStore{
		db:     db,
		logger: logger.With(slog.String("component", "identity_store")),
	}
}

// Ensure PostgresIdentityStore implements store.IdentityStore interface
var _ store.IdentityStore = (*PostgresIdentityStore)(nil)

// WithTx implements store.IdentityStore.WithTx
func (s *PostgresIdentityStore) WithTx(tx *sql.Tx) store.IdentityStore {
	return &PostgresIdentityStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.IdentityStore.Create
func (s *PostgresIdentityStore) Create(ctx context.Context, identity *domain.Identity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := identity.Validate(); err != nil {
		log.Warn("identity validation failed during create",
			slog.String("error", err.Error()),
			slog.String("identity_id", identity.ID.String()))
		return err
	}

	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.Username,
		identity.PasswordHash,
		identity.Active,
		identity.DisplayName,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Debug("identity uniqueness violation",
				slog.String("identity_id", identity.ID.String()))
			return mapped
		}
		log.Error("failed to create identity",
			slog.String("error", err.Error()),
			slog.String("identity_id", identity.ID.String()))
		return store.NewStoreError("identity", "create", "insert failed", mapped)
	}

	log.Info("identity created", slog.String("identity_id", identity.ID.String()))
	return nil
}

// FindConflicts implements store.IdentityStore.FindConflicts
func (s *PostgresIdentityStore) FindConflicts(
	ctx context.Context,
	email, username string,
) (store.Conflicts, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(BOOL_OR(email = $1), FALSE), COALESCE(BOOL_OR(username = $2), FALSE)
		FROM identities
		WHERE email = $1 OR username = $2
	`

	var conflicts store.Conflicts
	err := s.db.QueryRowContext(ctx, query, email, username).Scan(&conflicts.Email, &conflicts.Username)
	if err != nil {
		log.Error("failed to check identity conflicts", slog.String("error", err.Error()))
		return store.Conflicts{}, store.NewStoreError("identity", "find_conflicts", "query failed", MapError(err))
	}

	return conflicts, nil
}

// GetByID implements store.IdentityStore.GetByID
func (s *PostgresIdentityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return s.getOne(ctx, "get_by_id", query, id)
}

// GetByLogin implements store.IdentityStore.GetByLogin
// Usernames cannot contain '@' so a login value matches at most one column.
func (s *PostgresIdentityStore) GetByLogin(ctx context.Context, login string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1 OR username = $1 LIMIT 1`
	return s.getOne(ctx, "get_by_login", query, login)
}

func (s *PostgresIdentityStore) getOne(
	ctx context.Context,
	operation, query string,
	arg any,
) (*domain.Identity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var identity domain.Identity
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Username,
		&identity.PasswordHash,
		&identity.Active,
		&identity.DisplayName,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("identity not found", slog.String("operation", operation))
			return nil, store.ErrIdentityNotFound
		}
		log.Error("failed to load identity",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("identity", operation, "query failed", MapError(err))
	}

	return &identity, nil
}

// UpdatePasswordHash implements store.IdentityStore.UpdatePasswordHash
func (s *PostgresIdentityStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if passwordHash == "" {
		return domain.ErrEmptyPasswordHash
	}

	query := `UPDATE identities SET password_hash = $1, updated_at = $2 WHERE id = $3`
	return s.update(ctx, "update_password", id, query, passwordHash, time.Now().UTC(), id)
}

// SetActive implements store.IdentityStore.SetActive
func (s *PostgresIdentityStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE identities SET active = $1, updated_at = $2 WHERE id = $3`
	return s.update(ctx, "set_active", id, query, active, time.Now().UTC(), id)
}

func (s *PostgresIdentityStore) update(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	query string,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update identity",
			slog.String("operation", operation),
			slog.String("identity_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("identity", operation, "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrIdentityNotFound); err != nil {
		return err
	}

	log.Info("identity updated",
		slog.String("operation", operation),
		slog.String("identity_id", id.String()))
	return nil
}
