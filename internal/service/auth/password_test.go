package auth_test

import (
	"strings"
	"testing"

	"github.com/phrazzld/taskhub-auth/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	t.Run("matching password", func(t *testing.T) {
		assert.NoError(t, hasher.Compare(hash, testPassword))
	})

	t.Run("mismatched password", func(t *testing.T) {
		assert.ErrorIs(t, hasher.Compare(hash, "wrong-Passw0rd"), auth.ErrInvalidCredentials)
	})

	t.Run("malformed hash is not a credential error", func(t *testing.T) {
		err := hasher.Compare("not-a-bcrypt-hash", testPassword)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("dummy compare", func(t *testing.T) {
		assert.NotPanics(t, func() {
			hasher.CompareDummy(testPassword)
			hasher.CompareDummy(strings.Repeat("x", 100))
		})
	})
}

func TestNewBcryptHasherRejectsBadCost(t *testing.T) {
	t.Parallel()

	for _, cost := range []int{0, 3, 32} {
		_, err := auth.NewBcryptHasher(cost)
		assert.Error(t, err, "cost %d", cost)
	}
}
