package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
)

// Conflicts reports which unique identity fields are already taken.
type Conflicts struct {
	Email    bool
	Username bool
}

// Any reports whether either field conflicts.
func (c Conflicts) Any() bool {
	return c.Email || c.Username
}

// IdentityStore defines the interface for identity persistence.
type IdentityStore interface {
	// Create saves a new identity. The password hash must already be set.
	// Returns ErrEmailExists or ErrUsernameExists on a uniqueness violation.
	Create(ctx context.Context, identity *domain.Identity) error

	// FindConflicts checks email and username uniqueness in a single lookup,
	// so registration can reject before hashing or writing anything.
	FindConflicts(ctx context.Context, email, username string) (Conflicts, error)

	// GetByID retrieves an identity by ID.
	// Returns ErrIdentityNotFound if the identity does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)

	// GetByLogin retrieves an identity whose email OR username equals login,
	// using one query regardless of which field matches.
	// Returns ErrIdentityNotFound if no identity matches.
	GetByLogin(ctx context.Context, login string) (*domain.Identity, error)

	// UpdatePasswordHash replaces the stored hash and bumps updated_at.
	// Returns ErrIdentityNotFound if the identity does not exist.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	// SetActive flips the active flag.
	// Returns ErrIdentityNotFound if the identity does not exist.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// WithTx returns a new IdentityStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) IdentityStore
}
