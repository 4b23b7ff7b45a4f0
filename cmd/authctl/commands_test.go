package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	stack     *testutils.AuthStack
	server    string
	tokenFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stack := testutils.NewAuthStack(t)
	srv := stack.Server(t)
	return &harness{
		stack:     stack,
		server:    srv.URL + "/api",
		tokenFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

// run executes authctl with args and stdin, returning stdout and the error.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", h.server, "--token-file", h.tokenFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAuthctl_SessionLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "Sup3r-secret\n",
		"register", "--email", "ada@example.com", "--username", "ada", "--display-name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Registered ada <ada@example.com> (Ada)\n", out)

	info, err := os.Stat(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as ada <ada@example.com> (Ada)\n", out)

	// A later invocation picks up the stored session and refreshes it.
	h.stack.Clock.Advance(20 * time.Minute)
	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada")
	assert.Equal(t, 2, h.stack.Records.Len())

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out.\n", out)

	_, err = h.run(t, "", "whoami")
	assert.EqualError(t, err, "not signed in; run 'authctl login' first")
}

func TestAuthctl_LoginAndLogoutAll(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "Sup3r-secret\n", "register", "--email", "ada@example.com", "--username", "ada")
	require.NoError(t, err)

	out, err := h.run(t, "Sup3r-secret\n", "login", "ADA")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as ada <ada@example.com>\n", out)

	out, err = h.run(t, "", "logout-all")
	require.NoError(t, err)
	assert.Equal(t, "Signed out of 2 session(s).\n", out)
}

func TestAuthctl_Passwd(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "Sup3r-secret\n", "register", "--email", "ada@example.com", "--username", "ada")
	require.NoError(t, err)

	out, err := h.run(t, "Sup3r-secret\nN3w-password!\n", "passwd")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed")

	_, err = h.run(t, "Sup3r-secret\n", "login", "ada")
	assert.ErrorContains(t, err, "Invalid credentials")

	_, err = h.run(t, "N3w-password!\n", "login", "ada")
	require.NoError(t, err)
}

func TestAuthctl_Errors(t *testing.T) {
	h := newHarness(t)

	t.Run("missing password on stdin", func(t *testing.T) {
		_, err := h.run(t, "", "login", "ada")
		assert.EqualError(t, err, "password is required")
	})

	t.Run("wrong credentials", func(t *testing.T) {
		_, err := h.run(t, "Wr0ng-pass!\n", "login", "ada")
		assert.ErrorContains(t, err, "Invalid credentials")
	})

	t.Run("logout without session", func(t *testing.T) {
		_, err := h.run(t, "", "logout")
		assert.EqualError(t, err, "not signed in; run 'authctl login' first")
	})

	t.Run("register requires email", func(t *testing.T) {
		_, err := h.run(t, "Sup3r-secret\n", "register", "--username", "ada")
		assert.ErrorContains(t, err, `"email" not set`)
	})

	t.Run("password flag is not accepted", func(t *testing.T) {
		_, err := h.run(t, "", "login", "ada", "--password", "Sup3r-secret")
		assert.ErrorContains(t, err, "unknown flag: --password")
	})
}
