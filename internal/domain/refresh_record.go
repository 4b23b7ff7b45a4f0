package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshRecord is the durable state of one issued refresh token.
// Revoked only ever moves from false to true.
type RefreshRecord struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"-"`
	IdentityID uuid.UUID `json:"identity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRefreshRecord builds an unrevoked record for token, expiring at expiresAt.
func NewRefreshRecord(token string, identityID uuid.UUID, issuedAt, expiresAt time.Time) (*RefreshRecord, error) {
	record := &RefreshRecord{
		ID:         uuid.New(),
		Token:      token,
		IdentityID: identityID,
		ExpiresAt:  expiresAt.UTC(),
		CreatedAt:  issuedAt.UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks the record's structural invariants.
func (r *RefreshRecord) Validate() error {
	if r.ID == uuid.Nil || r.IdentityID == uuid.Nil {
		return ErrInvalidID
	}
	if r.Token == "" {
		return ErrEmptyToken
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return ErrInvalidExpiry
	}
	return nil
}

// IsExpired reports whether the record's expiry lies before now.
func (r *RefreshRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
