package mocks

import (
	"strings"
	"sync"

	"github.com/phrazzld/taskhub-auth/internal/service/auth"
)

// PasswordHasher implements auth.PasswordHasher with a reversible "hash" so tests
// run without bcrypt's cost. It records how often each method was called.
type PasswordHasher struct {
	mu sync.Mutex

	// HashFn and CompareFn override the default behaviour.
	HashFn    func(password string) (string, error)
	CompareFn func(hashedPassword, password string) error

	HashCallCount    int
	CompareCallCount int
	DummyCallCount   int
}

const mockHashPrefix = "mock-hash:"

var _ auth.PasswordHasher = (*PasswordHasher)(nil)

// Hash implements auth.PasswordHasher.
func (h *PasswordHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	h.HashCallCount++
	fn := h.HashFn
	h.mu.Unlock()

	if fn != nil {
		return fn(password)
	}
	return mockHashPrefix + password, nil
}

// Compare implements auth.PasswordVerifier.
func (h *PasswordHasher) Compare(hashedPassword, password string) error {
	h.mu.Lock()
	h.CompareCallCount++
	fn := h.CompareFn
	h.mu.Unlock()

	if fn != nil {
		return fn(hashedPassword, password)
	}
	if strings.TrimPrefix(hashedPassword, mockHashPrefix) == password {
		return nil
	}
	return auth.ErrInvalidCredentials
}

// CompareDummy implements auth.PasswordHasher.
func (h *PasswordHasher) CompareDummy(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.DummyCallCount++
}

// MockHash returns the hash PasswordHasher produces for password.
func MockHash(password string) string {
	return mockHashPrefix + password
}

// Calls returns the hash, compare and dummy-compare counts.
func (h *PasswordHasher) Calls() (hash, compare, dummy int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.HashCallCount, h.CompareCallCount, h.DummyCallCount
}
