package auth

import (
	"errors"
	"fmt"
)

// Authentication errors. Handlers collapse these into a small set of public
// messages; the distinctions exist for logging and metrics.
var (
	// ErrInvalidCredentials covers both an unknown login and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned when the identity has been deactivated.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrTokenInvalid means the token failed verification or refers to no usable session.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenRevoked means the refresh token was already consumed or revoked.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrTokenExpired means the token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token has expired")

	// ErrWrongTokenType is returned when an access token is presented where a
	// refresh token is expected, or vice versa.
	ErrWrongTokenType = fmt.Errorf("%w: wrong token type", ErrTokenInvalid)

	// ErrMissingToken indicates a token was expected but not provided.
	ErrMissingToken = fmt.Errorf("%w: token is missing", ErrTokenInvalid)

	// ErrConflict is the sentinel every ConflictError unwraps to.
	ErrConflict = errors.New("identity already exists")
)

// ConflictError reports which unique identity field is already taken.
type ConflictError struct {
	Field string // "email" or "username"
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is already registered", e.Field)
}

// Unwrap returns ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Token failure reasons reported to clients of the refresh endpoint.
const (
	ReasonTokenInvalid = "TokenInvalid"
	ReasonTokenRevoked = "TokenRevoked"
	ReasonTokenExpired = "TokenExpired"
)

// TokenFailureReason classifies a token error. ok is false when err is not a token error.
func TokenFailureReason(err error) (reason string, ok bool) {
	switch {
	case errors.Is(err, ErrTokenRevoked):
		return ReasonTokenRevoked, true
	case errors.Is(err, ErrTokenExpired):
		return ReasonTokenExpired, true
	case errors.Is(err, ErrTokenInvalid):
		return ReasonTokenInvalid, true
	default:
		return "", false
	}
}

// IsTokenError reports whether err is any of the token failure kinds.
func IsTokenError(err error) bool {
	_, ok := TokenFailureReason(err)
	return ok
}
