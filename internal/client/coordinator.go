package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRefreshTimeout bounds a single rotation.
const DefaultRefreshTimeout = 10 * time.Second

// RefreshFunc exchanges a refresh token for a new session. It is called
// directly by the Coordinator and never through Do, so a failure of the
// rotation endpoint cannot trigger another rotation.
type RefreshFunc func(ctx context.Context, refreshToken string) (Tokens, error)

// CallFunc performs one API call with the given access token.
type CallFunc func(ctx context.Context, accessToken string) error

type coordinatorState int

const (
	stateIdle coordinatorState = iota
	stateRefreshing
)

// refreshResult is delivered to each waiter when a rotation ends.
type refreshResult struct {
	accessToken string
	err         error
}

// waiter is one call blocked on the current rotation. ch is buffered so the
// rotation never blocks on a caller that has gone away.
type waiter struct {
	ch chan refreshResult
}

// Coordinator serializes token refreshes for one client process.
//
// In the idle state calls run with the stored access token. The first call
// that fails authorization moves the coordinator to refreshing and starts a
// single rotation; it and every call failing while the rotation runs wait in a
// FIFO queue. When the rotation ends each waiter replays its own call once
// with the new token, or all of them receive the same error and the stored
// tokens are cleared.
type Coordinator struct {
	mu      sync.Mutex
	state   coordinatorState
	queue   []*waiter
	current Tokens
	closed  bool

	store         TokenStore
	refresh       RefreshFunc
	isAuthFailure func(error) bool
	timeout       time.Duration
	logger        *slog.Logger

	baseCtx   context.Context
	cancel    context.CancelFunc
	rotations atomic.Int64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout bounds each rotation. A timeout is a rotation failure.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithAuthFailure replaces IsUnauthorized as the test for errors that need a refresh.
func WithAuthFailure(fn func(error) bool) CoordinatorOption {
	return func(c *Coordinator) { c.isAuthFailure = fn }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator and loads the persisted session from store.
func NewCoordinator(ctx context.Context, store TokenStore, refresh RefreshFunc, opts ...CoordinatorOption) (*Coordinator, error) {
	c := &Coordinator{
		store:         store,
		refresh:       refresh,
		isAuthFailure: IsUnauthorized,
		timeout:       DefaultRefreshTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "refresh_coordinator"))
	c.baseCtx, c.cancel = context.WithCancel(context.Background())

	tokens, err := store.Load(ctx)
	if err != nil {
		c.cancel()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	c.current = tokens
	return c, nil
}

// Do runs call with the current access token. If call fails authorization it
// waits for a refresh and replays call exactly once with the new token.
// Other failures are returned unchanged.
func (c *Coordinator) Do(ctx context.Context, call CallFunc) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	used := c.current.AccessToken
	c.mu.Unlock()

	err := call(ctx, used)
	if err == nil || !c.isAuthFailure(err) {
		return err
	}

	accessToken, waitErr := c.awaitRefresh(ctx, used, err)
	if waitErr != nil {
		return waitErr
	}
	return call(ctx, accessToken)
}

// awaitRefresh returns an access token newer than used, starting a rotation
// if none is running. callErr is returned when there is nothing to refresh.
func (c *Coordinator) awaitRefresh(ctx context.Context, used string, callErr error) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrCoordinatorClosed
	}

	// A rotation finished after this call started; retry with its token.
	if c.state == stateIdle && c.current.AccessToken != "" && c.current.AccessToken != used {
		token := c.current.AccessToken
		c.mu.Unlock()
		return token, nil
	}

	if c.state == stateIdle && c.current.RefreshToken == "" {
		c.mu.Unlock()
		return "", callErr
	}

	w := &waiter{ch: make(chan refreshResult, 1)}
	c.queue = append(c.queue, w)
	if c.state == stateIdle {
		c.state = stateRefreshing
		go c.rotate(c.current.RefreshToken)
	}
	c.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.accessToken, res.err
	case <-ctx.Done():
		c.abandon(w)
		return "", ctx.Err()
	}
}

// abandon removes a waiter whose caller gave up.
func (c *Coordinator) abandon(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.queue {
		if q == w {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// rotate runs one rotation and resolves every queued waiter. A session
// installed or cleared while the rotation ran is kept; the waiters then retry
// with it, or fail with ErrNotSignedIn when there is none.
func (c *Coordinator) rotate(refreshToken string) {
	c.rotations.Add(1)

	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	defer cancel()

	tokens, err := c.refresh(ctx, refreshToken)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		if c.baseCtx.Err() != nil {
			return
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	waiters := c.queue
	c.queue = nil
	c.state = stateIdle

	var res refreshResult
	switch {
	case c.current.RefreshToken != refreshToken:
		res.accessToken = c.current.AccessToken
		if res.accessToken == "" {
			res.err = ErrNotSignedIn
		}
		c.logger.Debug("session replaced during refresh; discarding rotated tokens")
	case err != nil:
		res.err = err
		c.current = Tokens{}
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Warn("failed to clear stored session", slog.String("error", clearErr.Error()))
		}
	default:
		res.accessToken = tokens.AccessToken
		c.current = tokens
		if saveErr := c.store.Save(ctx, tokens); saveErr != nil {
			// The old refresh token is spent, so keep the new session in memory.
			c.logger.Warn("failed to persist refreshed session", slog.String("error", saveErr.Error()))
		}
	}
	c.mu.Unlock()

	if res.err != nil {
		c.logger.Info("session refresh failed", slog.Int("waiters", len(waiters)), slog.String("error", res.err.Error()))
	} else {
		c.logger.Debug("session refreshed", slog.Int("waiters", len(waiters)))
	}

	for _, w := range waiters {
		w.ch <- res
	}
}

// SetSession replaces the current session, for example after sign-in. It wins
// over any rotation still in flight.
func (c *Coordinator) SetSession(ctx context.Context, tokens Tokens) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = tokens
	return c.store.Save(ctx, tokens)
}

// ClearSession forgets the current session.
func (c *Coordinator) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Tokens{}
	return c.store.Clear(ctx)
}

// Session returns the current session.
func (c *Coordinator) Session() Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Rotations returns how many rotations have been started.
func (c *Coordinator) Rotations() int64 {
	return c.rotations.Load()
}

// Close rejects every waiting call with ErrCoordinatorClosed and cancels any
// running rotation. A cancelled rotation persists nothing it has not already saved.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	waiters := c.queue
	c.queue = nil
	c.mu.Unlock()

	c.cancel()
	for _, w := range waiters {
		w.ch <- refreshResult{err: ErrCoordinatorClosed}
	}
}

// pending returns the number of queued waiters.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
