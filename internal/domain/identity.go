package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity represents a registered principal.
// It is created on registration and mutated on password change or deactivation;
// it is never hard-deleted by the authentication core.
type Identity struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Active       bool      `json:"active"`
	DisplayName  string    `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicIdentity is the subset of identity fields that may be returned to clients.
type PublicIdentity struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
}

// NewIdentity creates an active Identity with a fresh ID and timestamps.
// email and username are expected to be normalized already; passwordHash must be
// the output of a one-way hash, never the plaintext.
func NewIdentity(email, username, passwordHash, displayName string) (*Identity, error) {
	now := time.Now().UTC()
	identity := &Identity{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := identity.Validate(); err != nil {
		return nil, err
	}

	return identity, nil
}

// Validate checks the invariants of a persisted identity.
func (i *Identity) Validate() error {
	if i.ID == uuid.Nil {
		return ErrInvalidID
	}
	if !IsValidEmail(i.Email) {
		return ErrInvalidEmail
	}
	if !IsValidUsername(i.Username) {
		return ErrInvalidUsername
	}
	if i.PasswordHash == "" {
		return ErrEmptyPasswordHash
	}
	return nil
}

// Public returns the client-safe view of the identity.
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:          i.ID,
		Email:       i.Email,
		Username:    i.Username,
		DisplayName: i.DisplayName,
	}
}

// NormalizeEmail trims and lower-cases an email address. Emails are always
// compared case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims a username and, when foldCase is set, lower-cases it.
func NormalizeUsername(username string, foldCase bool) string {
	username = strings.TrimSpace(username)
	if foldCase {
		return strings.ToLower(username)
	}
	return username
}

// NormalizeLogin normalizes an email-or-username login identifier so it matches
// the stored form of whichever field it refers to.
func NormalizeLogin(emailOrUsername string, foldCase bool) string {
	if strings.Contains(emailOrUsername, "@") {
		return NormalizeEmail(emailOrUsername)
	}
	return NormalizeUsername(emailOrUsername, foldCase)
}
