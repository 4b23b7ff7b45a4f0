package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// Rotation results recorded in metrics.
const (
	rotationRotated = "rotated"
	rotationInvalid = "invalid"
	rotationRevoked = "revoked"
	rotationExpired = "expired"
	rotationError   = "error"
)

// RotationEngine exchanges a refresh token for a new pair, consuming the old
// token exactly once.
type RotationEngine struct {
	issuer     *TokenIssuer
	records    store.RefreshRecordStore
	identities store.IdentityStore
	emitter    events.EventEmitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewRotationEngine creates a rotation engine. emitter and m may be nil.
func NewRotationEngine(
	issuer *TokenIssuer,
	records store.RefreshRecordStore,
	identities store.IdentityStore,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RotationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotationEngine{
		issuer:     issuer,
		records:    records,
		identities: identities,
		emitter:    emitter,
		metrics:    m,
		logger:     logger.With(slog.String("component", "rotation_engine")),
	}
}

// Rotate validates refreshToken and, if it is live, revokes it and issues a new pair.
// Every call reads the store; concurrent calls with the same token produce at most
// one pair and the others fail with ErrTokenRevoked.
func (e *RotationEngine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, result, err := e.rotate(ctx, refreshToken)
	e.metrics.Rotation(result)
	return pair, err
}

func (e *RotationEngine) rotate(ctx context.Context, refreshToken string) (*TokenPair, string, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	// A bad signature and a past embedded expiry are both invalid here; only
	// the stored record's expiry reports TokenExpired.
	if _, err := e.issuer.ValidateRefreshToken(ctx, refreshToken); err != nil {
		log.Debug("refresh token failed verification", slog.String("error", err.Error()))
		return nil, rotationInvalid, ErrTokenInvalid
	}

	record, err := e.records.GetByToken(ctx, refreshToken)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("refresh token has no record")
			return nil, rotationInvalid, ErrTokenInvalid
		}
		return nil, rotationError, fmt.Errorf("failed to load refresh record: %w", err)
	}

	if record.Revoked {
		e.replay(ctx, log, record, "already_revoked")
		return nil, rotationRevoked, ErrTokenRevoked
	}

	if record.IsExpired(e.issuer.Now()) {
		return nil, rotationExpired, ErrTokenExpired
	}

	consumed, err := e.records.RevokeIfActive(ctx, refreshToken)
	if err != nil {
		return nil, rotationError, fmt.Errorf("failed to consume refresh record: %w", err)
	}
	if !consumed {
		// Another rotation consumed the record between the read and the write.
		e.replay(ctx, log, record, "concurrent_rotation")
		return nil, rotationRevoked, ErrTokenRevoked
	}

	identity, err := e.identities.GetByID(ctx, record.IdentityID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("refresh record owner no longer exists",
				slog.String("identity_id", record.IdentityID.String()))
			return nil, rotationInvalid, ErrTokenInvalid
		}
		return nil, rotationError, fmt.Errorf("failed to load identity: %w", err)
	}
	if !identity.Active {
		log.Info("rotation refused for inactive identity",
			slog.String("identity_id", identity.ID.String()))
		return nil, rotationInvalid, ErrTokenInvalid
	}

	pair, err := e.issuer.Issue(ctx, identity)
	if err != nil {
		return nil, rotationError, fmt.Errorf("failed to issue rotated tokens: %w", err)
	}

	log.Info("refresh token rotated", slog.String("identity_id", identity.ID.String()))
	return pair, rotationRotated, nil
}

func (e *RotationEngine) replay(ctx context.Context, log *slog.Logger, record *domain.RefreshRecord, reason string) {
	log.Warn("revoked refresh token presented",
		slog.String("identity_id", record.IdentityID.String()),
		slog.String("record_id", record.ID.String()),
		slog.String("reason", reason))
	events.Emit(ctx, e.emitter, log, events.NewReplayDetected(record.IdentityID, record.ID, reason))
}
