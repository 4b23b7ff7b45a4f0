package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskhub-auth/internal/api/shared"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/redact"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
)

// AccessTokenValidator verifies access tokens.
type AccessTokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthMiddleware provides bearer token authentication for routes.
type AuthMiddleware struct {
	validator AccessTokenValidator
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(validator AccessTokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// Authenticate validates the bearer access token and adds the identity ID to
// the request context. Every failure is a 401 so clients can attempt one refresh.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required",
				shared.WithReason(auth.ReasonTokenInvalid))
			return
		}

		claims, err := m.validator.ValidateAccessToken(r.Context(), token)
		if err != nil {
			reason, isTokenErr := auth.TokenFailureReason(err)
			if !isTokenErr {
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
				return
			}
			message := "Invalid token"
			if reason == auth.ReasonTokenExpired {
				message = "Token expired"
			}
			logger.FromContext(r.Context()).Debug("access token rejected",
				slog.String("reason", reason),
				slog.String("error", redact.Error(err)))
			shared.RespondWithError(w, r, http.StatusUnauthorized, message, shared.WithReason(reason))
			return
		}

		ctx := shared.WithIdentityID(r.Context(), claims.IdentityID)
		log := logger.FromContext(ctx).With(slog.String("identity_id", claims.IdentityID.String()))
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
