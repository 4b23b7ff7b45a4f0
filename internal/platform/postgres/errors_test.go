package postgres_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskhub-auth/internal/platform/postgres"
	"github.com/phrazzld/taskhub-auth/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "identities",
		ColumnName:     "email",
		ConstraintName: constraint,
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"email unique", newPgError("23505", "identities_email_key"), store.ErrEmailExists},
		{"username unique", newPgError("23505", "identities_username_key"), store.ErrUsernameExists},
		{"token unique", newPgError("23505", "refresh_records_token_key"), store.ErrTokenExists},
		{"other unique", newPgError("23505", "something_else"), store.ErrDuplicate},
		{"foreign key", newPgError("23503", "refresh_records_identity_id_fkey"), store.ErrInvalidEntity},
		{"check", newPgError("23514", "x"), store.ErrInvalidEntity},
		{"not null", newPgError("23502", ""), store.ErrInvalidEntity},
		{"unmapped", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := postgres.MapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("specific unique errors are duplicates", func(t *testing.T) {
		got := postgres.MapError(newPgError("23505", "identities_email_key"))
		assert.True(t, store.IsDuplicateError(got))
		assert.False(t, errors.Is(got, store.ErrUsernameExists))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505", "")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503", "")))
	assert.False(t, postgres.IsUniqueViolation(errors.New("plain")))
	assert.False(t, postgres.IsUniqueViolation(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	t.Run("rows affected", func(t *testing.T) {
		require.NoError(t, postgres.CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrIdentityNotFound))
	})

	t.Run("zero rows uses provided error", func(t *testing.T) {
		err := postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrIdentityNotFound)
		assert.ErrorIs(t, err, store.ErrIdentityNotFound)
	})

	t.Run("zero rows default", func(t *testing.T) {
		err := postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), nil)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("result error", func(t *testing.T) {
		err := postgres.CheckRowsAffected(sqlmock.NewErrorResult(errors.New("boom")), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get rows affected")
	})

	t.Run("nil result", func(t *testing.T) {
		assert.Error(t, postgres.CheckRowsAffected(nil, nil))
	})
}
