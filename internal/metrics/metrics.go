package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskhub_auth"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	rotations      *prometheus.CounterVec
	replays        prometheus.Counter
	revocations    *prometheus.CounterVec
	sweptRecords   prometheus.Counter
	requestLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Refresh token rotations by result (rotated, invalid, revoked, expired, error).",
		}, []string{"result"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_detected_total",
			Help:      "Refresh tokens presented after they were consumed or revoked.",
		}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Refresh records revoked, by reason.",
		}, []string{"reason"}),
		sweptRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_records_total",
			Help:      "Expired refresh records deleted by the retention sweeper.",
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.registrations,
		m.logins,
		m.rotations,
		m.replays,
		m.revocations,
		m.sweptRecords,
		m.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Registration counts a registration attempt.
func (m *Metrics) Registration(ok bool) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome(ok)).Inc()
}

// Login counts a login attempt.
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome(ok)).Inc()
}

// Rotation counts a rotation by result.
func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}

// Replay counts a replayed refresh token.
func (m *Metrics) Replay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// SessionsRevoked adds n revoked records under reason.
func (m *Metrics) SessionsRevoked(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.WithLabelValues(reason).Add(float64(n))
}

// Swept adds n records deleted by the sweeper.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptRecords.Add(float64(n))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(route, status).Observe(seconds)
}

// SecurityEventHandler returns an events.EventHandler that logs every security
// event and counts replays. Replays are logged at warn level.
func (m *Metrics) SecurityEventHandler(logger *slog.Logger) events.EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "security_events"))

	return events.HandlerFunc(func(ctx context.Context, event *events.SecurityEvent) error {
		attrs := []any{
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", string(event.Type)),
			slog.String("identity_id", event.IdentityID.String()),
			slog.String("reason", event.Reason),
		}

		switch event.Type {
		case events.ReplayDetected:
			m.Replay()
			logger.WarnContext(ctx, "refresh token replay detected",
				append(attrs, slog.String("record_id", event.RecordID.String()))...)
		case events.SessionsRevoked:
			logger.InfoContext(ctx, "sessions revoked", append(attrs, slog.Int64("count", event.Count))...)
		default:
			logger.InfoContext(ctx, "security event", attrs...)
		}
		return nil
	})
}
