package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskhub-auth/internal/api"
	authmiddleware "github.com/phrazzld/taskhub-auth/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(authmiddleware.Trace(app.logger))
	r.Use(authmiddleware.Metrics(app.metrics))
	r.Use(chimiddleware.Recoverer)

	authHandler := api.NewAuthHandler(app.verifier, app.issuer, app.rotation, app.revoker)
	authMW := authmiddleware.NewAuthMiddleware(app.issuer)
	r.Mount("/api", authHandler.Routes(authMW.Authenticate))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", app.metrics.Handler())

	return r
}
