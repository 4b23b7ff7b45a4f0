package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// RefreshRecordStore is an in-memory store.RefreshRecordStore. RevokeIfActive
// checks and sets under one lock, matching the conditional update of the real stores.
type RefreshRecordStore struct {
	mu      sync.Mutex
	records map[string]domain.RefreshRecord

	// Optional overrides.
	CreateFn         func(ctx context.Context, record *domain.RefreshRecord) error
	GetByTokenFn     func(ctx context.Context, token string) (*domain.RefreshRecord, error)
	RevokeIfActiveFn func(ctx context.Context, token string) (bool, error)
	RevokeAllFn      func(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// NewRefreshRecordStore creates an empty store.
func NewRefreshRecordStore() *RefreshRecordStore {
	return &RefreshRecordStore{records: make(map[string]domain.RefreshRecord)}
}

var _ store.RefreshRecordStore = (*RefreshRecordStore)(nil)

// Records returns a copy of every stored record.
func (s *RefreshRecordStore) Records() []domain.RefreshRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RefreshRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Len returns the number of stored records.
func (s *RefreshRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Create implements store.RefreshRecordStore.Create
func (s *RefreshRecordStore) Create(ctx context.Context, record *domain.RefreshRecord) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, record)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Token]; exists {
		return store.ErrTokenExists
	}
	s.records[record.Token] = *record
	return nil
}

// GetByToken implements store.RefreshRecordStore.GetByToken
func (s *RefreshRecordStore) GetByToken(ctx context.Context, token string) (*domain.RefreshRecord, error) {
	if s.GetByTokenFn != nil {
		return s.GetByTokenFn(ctx, token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[token]
	if !ok {
		return nil, store.ErrRefreshRecordNotFound
	}
	return &record, nil
}

// RevokeIfActive implements store.RefreshRecordStore.RevokeIfActive
func (s *RefreshRecordStore) RevokeIfActive(ctx context.Context, token string) (bool, error) {
	if s.RevokeIfActiveFn != nil {
		return s.RevokeIfActiveFn(ctx, token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[token]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	s.records[token] = record
	return true, nil
}

// RevokeAllForIdentity implements store.RefreshRecordStore.RevokeAllForIdentity
func (s *RefreshRecordStore) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error) {
	if s.RevokeAllFn != nil {
		return s.RevokeAllFn(ctx, identityID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, record := range s.records {
		if record.IdentityID == identityID && !record.Revoked {
			record.Revoked = true
			s.records[token] = record
			n++
		}
	}
	return n, nil
}

// DeleteExpired implements store.RefreshRecordStore.DeleteExpired
func (s *RefreshRecordStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, record := range s.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.records, token)
			n++
		}
	}
	return n, nil
}
