package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskhub-auth/internal/api/shared"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// Public messages. Credential and token failures are deliberately coarse.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgSessionExpired     = "Session expired, please sign in again"
	msgUnauthorized       = "Authentication required"
	msgValidation         = "Validation failed"
	msgInvalidRequest     = "Invalid request format"
	msgUnexpected         = "An unexpected error occurred"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error itself.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrConflict),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountInactive),
		auth.IsTokenError(err):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrIdentityNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return msgUnexpected
	}

	var conflict *auth.ConflictError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return msgValidation

	case errors.As(err, &conflict):
		if conflict.Field == "username" {
			return "Username is already taken"
		}
		return "Email is already registered"

	case errors.Is(err, store.ErrDuplicate):
		return "Identity already exists"

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountInactive):
		return msgInvalidCredentials

	case auth.IsTokenError(err):
		return msgSessionExpired

	case errors.Is(err, store.ErrIdentityNotFound):
		return "Identity not found"

	case errors.Is(err, store.ErrUnavailable):
		return "Service temporarily unavailable"

	default:
		return msgUnexpected
	}
}

// HandleAPIError writes the response for err: status and message from the
// mappings above, field details for validation errors and a reason code for
// token errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)

	var opts []shared.ResponseOption
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		opts = append(opts, shared.WithFields(verr.Fields))
	}
	if reason, ok := auth.TokenFailureReason(err); ok {
		opts = append(opts, shared.WithReason(reason))
		if reason == auth.ReasonTokenRevoked {
			opts = append(opts, shared.WithElevatedLogLevel())
		}
	}

	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err, opts...)
}
