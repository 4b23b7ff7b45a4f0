package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
)

// RefreshRecordStore defines the interface for refresh record persistence.
// Implementations must never cache: every call observes the current durable state.
type RefreshRecordStore interface {
	// Create persists a newly issued refresh record.
	// Returns ErrTokenExists if the token string is already recorded.
	Create(ctx context.Context, record *domain.RefreshRecord) error

	// GetByToken retrieves the record for a token string.
	// Returns ErrRefreshRecordNotFound if absent.
	GetByToken(ctx context.Context, token string) (*domain.RefreshRecord, error)

	// RevokeIfActive atomically sets revoked=true where the token matches and
	// revoked is still false. It reports true for exactly one concurrent caller;
	// every other caller (and any call on an unknown token) gets false.
	RevokeIfActive(ctx context.Context, token string) (bool, error)

	// RevokeAllForIdentity revokes every unrevoked record owned by the identity in
	// one operation and returns how many records changed.
	RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error)

	// DeleteExpired removes records whose expiry is strictly before cutoff.
	// It never touches a record that is still valid at cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
