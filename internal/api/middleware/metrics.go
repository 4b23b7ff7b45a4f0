package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
)

// Metrics records request latency by route pattern and status, and logs each
// completed request.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			m.ObserveRequest(route, strconv.Itoa(status), elapsed.Seconds())
			logger.FromContext(r.Context()).Debug("request completed",
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("duration", elapsed))
		})
	}
}
