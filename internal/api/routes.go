package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Route paths relative to the /api mount point.
const (
	PathRegister       = "/auth/register"
	PathLogin          = "/auth/login"
	PathRefresh        = "/auth/refresh"
	PathRevoke         = "/auth/revoke"
	PathLogoutAll      = "/auth/logout-all"
	PathMe             = "/me"
	PathChangePassword = "/me/password"
)

// Routes returns the /api sub-router. authenticate guards the routes that
// need an access token.
func (h *AuthHandler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post(PathRegister, h.Register)
	r.Post(PathLogin, h.Login)
	r.Post(PathRefresh, h.Refresh)
	r.Post(PathRevoke, h.Revoke)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get(PathMe, h.Me)
		r.Post(PathChangePassword, h.ChangePassword)
		r.Post(PathLogoutAll, h.LogoutAll)
	})

	return r
}
