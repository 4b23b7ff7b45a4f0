package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// IdentityStore is an in-memory store.IdentityStore.
type IdentityStore struct {
	mu         sync.Mutex
	identities map[uuid.UUID]domain.Identity

	// Optional overrides.
	CreateFn        func(ctx context.Context, identity *domain.Identity) error
	FindConflictsFn func(ctx context.Context, email, username string) (store.Conflicts, error)
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	GetByLoginFn    func(ctx context.Context, login string) (*domain.Identity, error)

	// CreateCallCount counts calls to Create, including rejected ones.
	CreateCallCount int
}

// NewIdentityStore creates an empty store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{identities: make(map[uuid.UUID]domain.Identity)}
}

var _ store.IdentityStore = (*IdentityStore)(nil)

// Add inserts identity directly, bypassing validation and uniqueness checks.
func (s *IdentityStore) Add(identity *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = *identity
}

// Len returns the number of stored identities.
func (s *IdentityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

// Create implements store.IdentityStore.Create
func (s *IdentityStore) Create(ctx context.Context, identity *domain.Identity) error {
	s.mu.Lock()
	s.CreateCallCount++
	fn := s.CreateFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, identity)
	}

	if err := identity.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identities {
		if existing.Email == identity.Email {
			return store.ErrEmailExists
		}
		if existing.Username == identity.Username {
			return store.ErrUsernameExists
		}
	}
	s.identities[identity.ID] = *identity
	return nil
}

// FindConflicts implements store.IdentityStore.FindConflicts
func (s *IdentityStore) FindConflicts(ctx context.Context, email, username string) (store.Conflicts, error) {
	if s.FindConflictsFn != nil {
		return s.FindConflictsFn(ctx, email, username)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var c store.Conflicts
	for _, existing := range s.identities {
		c.Email = c.Email || existing.Email == email
		c.Username = c.Username || existing.Username == username
	}
	return c, nil
}

// GetByID implements store.IdentityStore.GetByID
func (s *IdentityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, store.ErrIdentityNotFound
	}
	return &identity, nil
}

// GetByLogin implements store.IdentityStore.GetByLogin
func (s *IdentityStore) GetByLogin(ctx context.Context, login string) (*domain.Identity, error) {
	if s.GetByLoginFn != nil {
		return s.GetByLoginFn(ctx, login)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.identities {
		if identity.Email == login || identity.Username == login {
			found := identity
			return &found, nil
		}
	}
	return nil, store.ErrIdentityNotFound
}

// UpdatePasswordHash implements store.IdentityStore.UpdatePasswordHash
func (s *IdentityStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	return s.mutate(id, func(identity *domain.Identity) {
		identity.PasswordHash = passwordHash
	})
}

// SetActive implements store.IdentityStore.SetActive
func (s *IdentityStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return s.mutate(id, func(identity *domain.Identity) {
		identity.Active = active
	})
}

// WithTx implements store.IdentityStore.WithTx. The in-memory store has no
// transactions, so it returns itself.
func (s *IdentityStore) WithTx(*sql.Tx) store.IdentityStore {
	return s
}

func (s *IdentityStore) mutate(id uuid.UUID, fn func(*domain.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return store.ErrIdentityNotFound
	}
	fn(&identity)
	identity.UpdatedAt = time.Now().UTC()
	s.identities[id] = identity
	return nil
}
