package api

import (
	"time"

	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
)

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Validate implements the request validation hook used by shared.ValidateRequest.
func (r RegisterRequest) Validate() error {
	return domain.ValidateRegistration(r.Email, r.Username, r.Password, r.DisplayName).Err()
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
}

// Validate implements the request validation hook used by shared.ValidateRequest.
func (r LoginRequest) Validate() error {
	return domain.ValidateLogin(r.EmailOrUsername, r.Password).Err()
}

// RefreshTokenRequest is the payload of the refresh and revoke endpoints. An
// empty token is not a validation error: refresh rejects it as an invalid
// token and revoke treats it as already revoked.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest defines the payload for the password change endpoint.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate implements the request validation hook used by shared.ValidateRequest.
func (r ChangePasswordRequest) Validate() error {
	return domain.ValidatePasswordChange(r.CurrentPassword, r.NewPassword).Err()
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	// AccessToken authorizes API calls until ExpiresAt.
	AccessToken string `json:"access_token"`

	// RefreshToken can be exchanged exactly once for a new pair.
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the RFC 3339 expiry of the access token.
	ExpiresAt string `json:"expires_at"`

	// RefreshExpiresAt is the RFC 3339 expiry of the refresh token.
	RefreshExpiresAt string `json:"refresh_expires_at"`

	Identity domain.PublicIdentity `json:"identity"`
}

// SuccessResponse acknowledges an operation with no other result.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	Success bool  `json:"success"`
	Revoked int64 `json:"revoked"`
}

func newAuthResponse(pair *auth.TokenPair) AuthResponse {
	return AuthResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresAt:        pair.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC().Format(time.RFC3339),
		Identity:         pair.Identity,
	}
}
