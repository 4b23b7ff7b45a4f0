package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultRetention is how long Redis keeps a record past its expiry before
// evicting it on its own, in case the sweeper is disabled.
const DefaultRetention = 24 * time.Hour

// RefreshRecordStore implements store.RefreshRecordStore on Redis.
type RefreshRecordStore struct {
	client    goredis.UniversalClient
	prefix    string
	retention time.Duration
	logger    *slog.Logger
}

// Option customizes a RefreshRecordStore.
type Option func(*RefreshRecordStore)

// WithRetention sets how long records outlive their expiry in Redis.
func WithRetention(d time.Duration) Option {
	return func(s *RefreshRecordStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RefreshRecordStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRefreshRecordStore creates a store using client with all keys under prefix.
// The prefix becomes a cluster hash tag, so every key of the store maps to one
// slot; a prefix that already holds a tag is used as given.
func NewRefreshRecordStore(client goredis.UniversalClient, prefix string, opts ...Option) *RefreshRecordStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "taskhub"
	}
	if !strings.Contains(prefix, "{") {
		prefix = "{" + prefix + "}"
	}

	s := &RefreshRecordStore{
		client:    client,
		prefix:    prefix,
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "redis_refresh_store"))
	return s
}

// Ensure RefreshRecordStore implements store.RefreshRecordStore interface
var _ store.RefreshRecordStore = (*RefreshRecordStore)(nil)

func (s *RefreshRecordStore) recordPrefix() string { return s.prefix + ":refresh:" }

func (s *RefreshRecordStore) identityPrefix() string { return s.prefix + ":identity-refresh:" }

func (s *RefreshRecordStore) recordKey(token string) string { return s.recordPrefix() + token }

func (s *RefreshRecordStore) identityKey(id uuid.UUID) string { return s.identityPrefix() + id.String() }

func (s *RefreshRecordStore) expiryKey() string { return s.prefix + ":refresh-expiry" }

// unavailable wraps a client failure so callers can classify it.
func unavailable(op string, err error) error {
	return store.NewStoreError("refresh_record", op, "redis command failed",
		fmt.Errorf("%w: %v", store.ErrUnavailable, err))
}

// Create implements store.RefreshRecordStore.Create
func (s *RefreshRecordStore) Create(ctx context.Context, record *domain.RefreshRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return err
	}

	expireAt := record.ExpiresAt.Add(s.retention)
	ttl := time.Until(expireAt).Milliseconds()
	created, err := createScript.Run(ctx, s.client,
		[]string{s.recordKey(record.Token), s.identityKey(record.IdentityID), s.expiryKey()},
		record.Token,
		record.ID.String(),
		record.IdentityID.String(),
		record.ExpiresAt.UnixNano(),
		record.CreatedAt.UnixNano(),
		record.ExpiresAt.UnixMilli(),
		expireAt.UnixMilli(),
		ttl,
	).Int64()
	if err != nil {
		log.Error("failed to create refresh record", slog.String("error", err.Error()))
		return unavailable("create", err)
	}
	if created == 0 {
		return store.ErrTokenExists
	}

	return nil
}

// GetByToken implements store.RefreshRecordStore.GetByToken
func (s *RefreshRecordStore) GetByToken(ctx context.Context, token string) (*domain.RefreshRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(token)).Result()
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load refresh record",
			slog.String("error", err.Error()))
		return nil, unavailable("get_by_token", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrRefreshRecordNotFound
	}

	record, err := decodeRecord(token, fields)
	if err != nil {
		return nil, store.NewStoreError("refresh_record", "get_by_token", "corrupt record", err)
	}
	return record, nil
}

// RevokeIfActive implements store.RefreshRecordStore.RevokeIfActive
func (s *RefreshRecordStore) RevokeIfActive(ctx context.Context, token string) (bool, error) {
	n, err := revokeIfActiveScript.Run(ctx, s.client, []string{s.recordKey(token)}).Int64()
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to revoke refresh record",
			slog.String("error", err.Error()))
		return false, unavailable("revoke", err)
	}
	return n == 1, nil
}

// RevokeAllForIdentity implements store.RefreshRecordStore.RevokeAllForIdentity
func (s *RefreshRecordStore) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	n, err := revokeAllScript.Run(ctx, s.client,
		[]string{s.identityKey(identityID)},
		s.recordPrefix(),
	).Int64()
	if err != nil {
		log.Error("failed to revoke identity sessions",
			slog.String("identity_id", identityID.String()),
			slog.String("error", err.Error()))
		return 0, unavailable("revoke_all", err)
	}

	log.Info("identity sessions revoked",
		slog.String("identity_id", identityID.String()),
		slog.Int64("count", n))
	return n, nil
}

// DeleteExpired implements store.RefreshRecordStore.DeleteExpired
// Scores are truncated to milliseconds, so the exclusive bound can only leave
// an expired record for the next run, never remove a live one.
func (s *RefreshRecordStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	bound := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	n, err := deleteExpiredScript.Run(ctx, s.client,
		[]string{s.expiryKey()},
		s.recordPrefix(),
		s.identityPrefix(),
		bound,
	).Int64()
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete expired refresh records",
			slog.String("error", err.Error()))
		return 0, unavailable("delete_expired", err)
	}
	return n, nil
}

func decodeRecord(token string, fields map[string]string) (*domain.RefreshRecord, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	identityID, err := uuid.Parse(fields["identity_id"])
	if err != nil {
		return nil, fmt.Errorf("invalid identity_id: %w", err)
	}
	expiresAt, err := parseUnixNano(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	createdAt, err := parseUnixNano(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	revoked := fields["revoked"]
	if revoked != "0" && revoked != "1" {
		return nil, errors.New("invalid revoked flag")
	}

	return &domain.RefreshRecord{
		ID:         id,
		Token:      token,
		IdentityID: identityID,
		ExpiresAt:  expiresAt,
		Revoked:    revoked == "1",
		CreatedAt:  createdAt,
	}, nil
}

func parseUnixNano(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
