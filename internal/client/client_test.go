package client_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/api"
	"github.com/phrazzld/taskhub-auth/internal/client"
	"github.com/phrazzld/taskhub-auth/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Sup3r-secret"

func newClient(t *testing.T, stack *testutils.AuthStack) *client.Client {
	t.Helper()
	srv := stack.Server(t)
	c, err := client.New(context.Background(), srv.URL+"/api", client.NewMemoryTokenStore(),
		client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func registerAda(t *testing.T, c *client.Client) {
	t.Helper()
	_, err := c.Register(context.Background(), api.RegisterRequest{
		Email:    "ada@example.com",
		Username: "ada",
		Password: password,
	})
	require.NoError(t, err)
}

func TestClient_RegisterAndMe(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)

	registerAda(t, c)
	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)
	assert.Zero(t, c.Coordinator().Rotations())
}

func TestClient_ExpiredAccessTokenRefreshesOnce(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)
	before := c.Session()

	stack.Clock.Advance(16 * time.Minute)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Me(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), c.Coordinator().Rotations())
	assert.Equal(t, 2, stack.Records.Len())
	assert.NotEqual(t, before.RefreshToken, c.Session().RefreshToken)
}

func TestClient_RevokedSessionFailsRefreshAndSignsOut(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)

	other := newClient(t, stack)
	_, err := other.Login(context.Background(), "ada", password)
	require.NoError(t, err)
	revoked, err := other.LogoutAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	stack.Clock.Advance(16 * time.Minute)

	_, err = c.Me(context.Background())
	require.ErrorIs(t, err, client.ErrRefreshFailed)
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.True(t, c.Session().Empty())

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, client.ErrNotSignedIn)
}

func TestClient_WrongCurrentPasswordDoesNotRefresh(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)

	err := c.ChangePassword(context.Background(), "Wr0ng-password", "N3w-password!")
	var se *client.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Zero(t, c.Coordinator().Rotations())
	assert.False(t, c.Session().Empty())
}

func TestClient_ChangePasswordSignsOut(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)

	require.NoError(t, c.ChangePassword(context.Background(), password, "N3w-password!"))
	assert.True(t, c.Session().Empty())

	_, err := c.Login(context.Background(), "ada", "N3w-password!")
	require.NoError(t, err)
}

func TestClient_Logout(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)
	refreshToken := c.Session().RefreshToken

	require.NoError(t, c.Logout(context.Background()))
	assert.True(t, c.Session().Empty())
	assert.ErrorIs(t, c.Logout(context.Background()), client.ErrNotSignedIn)

	records := stack.Records.Records()
	require.Len(t, records, 1)
	assert.Equal(t, refreshToken, records[0].Token)
	assert.True(t, records[0].Revoked)
}

func TestClient_LoginFailure(t *testing.T) {
	t.Parallel()
	stack := testutils.NewAuthStack(t)
	c := newClient(t, stack)
	registerAda(t, c)
	require.NoError(t, c.Logout(context.Background()))

	_, err := c.Login(context.Background(), "ada", "Wr0ng-password")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Invalid credentials", se.Message)
	assert.True(t, c.Session().Empty())
}
