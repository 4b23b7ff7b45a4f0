package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// Revocation reasons recorded in events and metrics.
const (
	RevokeReasonLogout         = "logout"
	RevokeReasonLogoutAll      = "logout_all"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonDeactivated    = "deactivated"
)

// SessionRevoker invalidates refresh records.
type SessionRevoker struct {
	records store.RefreshRecordStore
	emitter events.EventEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSessionRevoker creates a revoker. emitter and m may be nil.
func NewSessionRevoker(
	records store.RefreshRecordStore,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SessionRevoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRevoker{
		records: records,
		emitter: emitter,
		metrics: m,
		logger:  logger.With(slog.String("component", "session_revoker")),
	}
}

// RevokeOne revokes a single refresh token. Unknown and already revoked tokens
// succeed silently, so sign-out is idempotent.
func (r *SessionRevoker) RevokeOne(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	revoked, err := r.records.RevokeIfActive(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if revoked {
		r.metrics.SessionsRevoked(RevokeReasonLogout, 1)
	}

	logger.FromContextOrDefault(ctx, r.logger).Debug("sign-out processed", slog.Bool("revoked", revoked))
	return nil
}

// RevokeAllForIdentity revokes every active refresh record of an identity in one
// store operation and returns once the change is durable.
func (r *SessionRevoker) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID, reason string) (int64, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	n, err := r.records.RevokeAllForIdentity(ctx, identityID)
	if err != nil {
		log.Error("failed to revoke identity sessions",
			slog.String("identity_id", identityID.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	r.metrics.SessionsRevoked(reason, n)
	events.Emit(ctx, r.emitter, log, events.NewSessionsRevoked(identityID, n, reason))
	return n, nil
}
