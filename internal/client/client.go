package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/api"
	"github.com/phrazzld/taskhub-auth/internal/api/shared"
	"github.com/phrazzld/taskhub-auth/internal/domain"
)

// Client calls the auth API and keeps the session current through a Coordinator.
type Client struct {
	baseURL     string
	http        *http.Client
	coordinator *Coordinator
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient     *http.Client
	logger         *slog.Logger
	refreshTimeout time.Duration
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithClientRefreshTimeout bounds each session refresh.
func WithClientRefreshTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.refreshTimeout = d }
}

// New creates a client for the API at baseURL, for example "http://localhost:8080/api".
// The session is loaded from store.
func New(ctx context.Context, baseURL string, store TokenStore, opts ...Option) (*Client, error) {
	o := clientOptions{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         slog.Default(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    o.httpClient,
		logger:  o.logger,
	}

	coordinator, err := NewCoordinator(ctx, store, c.refresh,
		WithRefreshTimeout(o.refreshTimeout),
		WithCoordinatorLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	c.coordinator = coordinator
	return c, nil
}

// Coordinator returns the client's refresh coordinator.
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// Session returns the current session.
func (c *Client) Session() Tokens {
	return c.coordinator.Session()
}

// Close stops the refresh coordinator.
func (c *Client) Close() {
	c.coordinator.Close()
}

// Register creates an identity and stores the issued session.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (domain.PublicIdentity, error) {
	var resp api.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return domain.PublicIdentity{}, err
	}
	return c.storeSession(ctx, resp)
}

// Login signs in and stores the issued session.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (domain.PublicIdentity, error) {
	req := api.LoginRequest{EmailOrUsername: emailOrUsername, Password: password}
	var resp api.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return domain.PublicIdentity{}, err
	}
	return c.storeSession(ctx, resp)
}

// Me returns the signed-in identity.
func (c *Client) Me(ctx context.Context) (domain.PublicIdentity, error) {
	var identity domain.PublicIdentity
	err := c.authorized(ctx, func(ctx context.Context, accessToken string) error {
		return c.send(ctx, http.MethodGet, "/me", accessToken, nil, &identity)
	})
	return identity, err
}

// ChangePassword changes the password. The server revokes every session, so
// the local session is cleared on success.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	req := api.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	err := c.authorized(ctx, func(ctx context.Context, accessToken string) error {
		return c.send(ctx, http.MethodPost, "/me/password", accessToken, req, nil)
	})
	if err != nil {
		return err
	}
	return c.coordinator.ClearSession(ctx)
}

// LogoutAll revokes every session of the signed-in identity and clears the
// local session. It returns the number of sessions revoked.
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	var resp api.LogoutAllResponse
	err := c.authorized(ctx, func(ctx context.Context, accessToken string) error {
		return c.send(ctx, http.MethodPost, "/auth/logout-all", accessToken, nil, &resp)
	})
	if err != nil {
		return 0, err
	}
	return resp.Revoked, c.coordinator.ClearSession(ctx)
}

// Logout revokes the current refresh token and clears the local session.
// The local session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	session := c.coordinator.Session()
	if session.RefreshToken == "" {
		return ErrNotSignedIn
	}

	req := api.RefreshTokenRequest{RefreshToken: session.RefreshToken}
	sendErr := c.send(ctx, http.MethodPost, "/auth/revoke", "", req, nil)
	if err := c.coordinator.ClearSession(ctx); err != nil {
		return errors.Join(sendErr, err)
	}
	return sendErr
}

func (c *Client) authorized(ctx context.Context, call CallFunc) error {
	if c.coordinator.Session().Empty() {
		return ErrNotSignedIn
	}
	return c.coordinator.Do(ctx, call)
}

// refresh is the Coordinator's RefreshFunc. It calls the endpoint directly so
// a rejected refresh token never re-enters the coordinator.
func (c *Client) refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	req := api.RefreshTokenRequest{RefreshToken: refreshToken}
	var resp api.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", "", req, &resp); err != nil {
		return Tokens{}, err
	}
	return tokensFromResponse(resp)
}

func (c *Client) storeSession(ctx context.Context, resp api.AuthResponse) (domain.PublicIdentity, error) {
	tokens, err := tokensFromResponse(resp)
	if err != nil {
		return domain.PublicIdentity{}, err
	}
	if err := c.coordinator.SetSession(ctx, tokens); err != nil {
		return domain.PublicIdentity{}, fmt.Errorf("failed to store session: %w", err)
	}
	return tokens.Identity, nil
}

func tokensFromResponse(resp api.AuthResponse) (Tokens, error) {
	accessExp, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	if err != nil {
		return Tokens{}, fmt.Errorf("invalid expires_at in response: %w", err)
	}
	refreshExp, err := time.Parse(time.RFC3339, resp.RefreshExpiresAt)
	if err != nil {
		return Tokens{}, fmt.Errorf("invalid refresh_expires_at in response: %w", err)
	}
	return Tokens{
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		Identity:         resp.Identity,
	}, nil
}

// send performs one JSON request. A non-2xx status is returned as *StatusError.
func (c *Client) send(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body shared.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, shared.MaxBodyBytes)).Decode(&body); err == nil {
		if body.Error != "" {
			statusErr.Message = body.Error
		}
		statusErr.Reason = body.Reason
		statusErr.TraceID = body.TraceID
	}
	return statusErr
}
