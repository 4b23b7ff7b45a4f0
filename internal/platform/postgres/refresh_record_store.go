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

// PostgresRefreshRecordStore implements store.RefreshRecordStore on PostgreSQL.
// Every method goes to the database; nothing is cached in process.
type PostgresRefreshRecordStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRefreshRecordStore creates a refresh record store on db.
// If logger is nil, slog.Default() is used.
func NewPostgresRefreshRecordStore(db store.DBTX, logger *slog.Logger) *PostgresRefreshRecordStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRefreshRecordStore{
		db:     db,
		logger: logger.With(slog.String("component", "refresh_record_store")),
	}
}

// Ensure PostgresRefreshRecordStore implements store.RefreshRecordStore interface
var _ store.RefreshRecordStore = (*PostgresRefreshRecordStore)(nil)

// Create implements store.RefreshRecordStore.Create
func (s *PostgresRefreshRecordStore) Create(ctx context.Context, record *domain.RefreshRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("refresh record validation failed", slog.String("error", err.Error()))
		return err
	}

	query := `
		INSERT INTO refresh_records (id, token, identity_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Token,
		record.IdentityID,
		record.ExpiresAt,
		record.Revoked,
		record.CreatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		log.Error("failed to create refresh record",
			slog.String("identity_id", record.IdentityID.String()),
			slog.String("error", err.Error()))
		if store.IsDuplicateError(mapped) {
			return mapped
		}
		return store.NewStoreError("refresh_record", "create", "insert failed", mapped)
	}

	log.Debug("refresh record created",
		slog.String("record_id", record.ID.String()),
		slog.String("identity_id", record.IdentityID.String()))
	return nil
}

// GetByToken implements store.RefreshRecordStore.GetByToken
func (s *PostgresRefreshRecordStore) GetByToken(ctx context.Context, token string) (*domain.RefreshRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, token, identity_id, expires_at, revoked, created_at
		FROM refresh_records
		WHERE token = $1
	`

	var record domain.RefreshRecord
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&record.ID,
		&record.Token,
		&record.IdentityID,
		&record.ExpiresAt,
		&record.Revoked,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRefreshRecordNotFound
		}
		log.Error("failed to load refresh record", slog.String("error", err.Error()))
		return nil, store.NewStoreError("refresh_record", "get_by_token", "query failed", MapError(err))
	}

	return &record, nil
}

// RevokeIfActive implements store.RefreshRecordStore.RevokeIfActive
// The WHERE clause makes the check and the write a single statement, so two
// concurrent callers cannot both see revoked = false.
func (s *PostgresRefreshRecordStore) RevokeIfActive(ctx context.Context, token string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE refresh_records SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`

	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		log.Error("failed to revoke refresh record", slog.String("error", err.Error()))
		return false, store.NewStoreError("refresh_record", "revoke", "update failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, store.NewStoreError("refresh_record", "revoke", "rows affected unavailable", err)
	}

	return n == 1, nil
}

// RevokeAllForIdentity implements store.RefreshRecordStore.RevokeAllForIdentity
func (s *PostgresRefreshRecordStore) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE refresh_records SET revoked = TRUE WHERE identity_id = $1 AND revoked = FALSE`

	result, err := s.db.ExecContext(ctx, query, identityID)
	if err != nil {
		log.Error("failed to revoke identity sessions",
			slog.String("identity_id", identityID.String()),
			slog.String("error", err.Error()))
		return 0, store.NewStoreError("refresh_record", "revoke_all", "update failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("refresh_record", "revoke_all", "rows affected unavailable", err)
	}

	log.Info("identity sessions revoked",
		slog.String("identity_id", identityID.String()),
		slog.Int64("count", n))
	return n, nil
}

// DeleteExpired implements store.RefreshRecordStore.DeleteExpired
func (s *PostgresRefreshRecordStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM refresh_records WHERE expires_at < $1`

	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		log.Error("failed to delete expired refresh records", slog.String("error", err.Error()))
		return 0, store.NewStoreError("refresh_record", "delete_expired", "delete failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("refresh_record", "delete_expired", "rows affected unavailable", err)
	}

	return n, nil
}
