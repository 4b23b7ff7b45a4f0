package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.Login(true)
	m.Login(false)
	m.Login(false)
	m.Rotation("rotated")
	m.Rotation("revoked")
	m.SessionsRevoked("password_change", 3)
	m.SessionsRevoked("noop", 0)
	m.Swept(5)

	assert.Equal(t, float64(2), gathered(t, m, "taskhub_auth_logins_total", "failure"))
	assert.Equal(t, float64(1), gathered(t, m, "taskhub_auth_logins_total", "success"))
	assert.Equal(t, float64(1), gathered(t, m, "taskhub_auth_rotations_total", "revoked"))
	assert.Equal(t, float64(3), gathered(t, m, "taskhub_auth_sessions_revoked_total", "password_change"))
	assert.Equal(t, float64(0), gathered(t, m, "taskhub_auth_sessions_revoked_total", "noop"))
	assert.Equal(t, float64(5), gathered(t, m, "taskhub_auth_swept_records_total", ""))
}

// gathered returns the value of the series of family name whose single label
// equals label, or the unlabelled series when label is empty. Missing series read as 0.
func gathered(t *testing.T, m *metrics.Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := metric.GetLabel()
			if (label == "" && len(labels) == 0) || (len(labels) == 1 && labels[0].GetValue() == label) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Login(true)
		m.Registration(false)
		m.Rotation("rotated")
		m.Replay()
		m.SessionsRevoked("x", 1)
		m.Swept(1)
		m.ObserveRequest("/health", "200", 0.01)
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.Replay()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taskhub_auth_replay_detected_total 1")
}

func TestSecurityEventHandler(t *testing.T) {
	m := metrics.New()
	l, buf := logger.NewCapture()
	handler := m.SecurityEventHandler(l)

	require.NoError(t, handler.HandleEvent(context.Background(),
		events.NewReplayDetected(uuid.New(), uuid.New(), "already_revoked")))
	require.NoError(t, handler.HandleEvent(context.Background(),
		events.NewSessionsRevoked(uuid.New(), 2, "logout_all")))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "refresh token replay detected", entries[0]["msg"])
	assert.Equal(t, "sessions revoked", entries[1]["msg"])

	assert.Equal(t, float64(1), gathered(t, m, "taskhub_auth_replay_detected_total", ""))
}
