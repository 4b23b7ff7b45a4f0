package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/api/shared"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
)

// CredentialService registers identities and checks passwords.
type CredentialService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.Identity, error)
	Login(ctx context.Context, emailOrUsername, password string) (*domain.Identity, error)
	ChangePassword(ctx context.Context, identityID uuid.UUID, currentPassword, newPassword string) error
	Identity(ctx context.Context, identityID uuid.UUID) (*domain.Identity, error)
}

// TokenService issues token pairs.
type TokenService interface {
	Issue(ctx context.Context, identity *domain.Identity) (*auth.TokenPair, error)
}

// RotationService exchanges refresh tokens.
type RotationService interface {
	Rotate(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
}

// SessionService revokes refresh tokens.
type SessionService interface {
	RevokeOne(ctx context.Context, refreshToken string) error
	RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID, reason string) (int64, error)
}

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	credentials CredentialService
	tokens      TokenService
	rotation    RotationService
	sessions    SessionService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	credentials CredentialService,
	tokens TokenService,
	rotation RotationService,
	sessions SessionService,
) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		tokens:      tokens,
		rotation:    rotation,
		sessions:    sessions,
	}
}

// decode reads and validates a request body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msgInvalidRequest, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err)
		return false
	}
	return true
}

// identityID returns the authenticated identity, writing a 401 when absent.
func identityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := shared.GetIdentityID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, msgUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	identity, err := h.credentials.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	h.respondWithPair(w, r, http.StatusCreated, identity)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	identity, err := h.credentials.Login(r.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	h.respondWithPair(w, r, http.StatusOK, identity)
}

func (h *AuthHandler) respondWithPair(w http.ResponseWriter, r *http.Request, status int, identity *domain.Identity) {
	pair, err := h.tokens.Issue(r.Context(), identity)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to generate authentication tokens", err)
		return
	}
	shared.RespondWithJSON(w, r, status, newAuthResponse(pair))
}

// Refresh handles POST /api/auth/refresh. Token failures return 401 with the
// same message and a reason code.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.rotation.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newAuthResponse(pair))
}

// Revoke handles POST /api/auth/revoke. It succeeds for unknown and already
// revoked tokens.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.sessions.RevokeOne(r.Context(), req.RefreshToken); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identityID(w, r)
	if !ok {
		return
	}

	identity, err := h.credentials.Identity(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if !identity.Active {
		HandleAPIError(w, r, auth.ErrAccountInactive)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, identity.Public())
}

// ChangePassword handles POST /api/me/password. A wrong current password is a
// 403 so that clients do not treat it as an expired session.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identityID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.credentials.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Current password is incorrect", err,
			shared.WithElevatedLogLevel())
		return
	default:
		HandleAPIError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("password changed, sessions revoked",
		slog.String("identity_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// LogoutAll handles POST /api/auth/logout-all.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := identityID(w, r)
	if !ok {
		return
	}

	n, err := h.sessions.RevokeAllForIdentity(r.Context(), id, auth.RevokeReasonLogoutAll)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LogoutAllResponse{Success: true, Revoked: n})
}
