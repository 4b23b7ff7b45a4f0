package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
	"github.com/phrazzld/taskhub-auth/internal/store"
)

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const minSecretLength = 32

// TokenPair is the result of a successful login, registration or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Identity         domain.PublicIdentity
}

// Claims are the verified contents of a token.
type Claims struct {
	IdentityID uuid.UUID
	Email      string
	Username   string
	TokenType  string
	ID         string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// jwtClaims is the wire form of both token types. Email and username are
// only set on access tokens.
type jwtClaims struct {
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer mints access/refresh pairs and records every refresh token it issues.
type TokenIssuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	timeFunc   func() time.Time
	records    store.RefreshRecordStore
	logger     *slog.Logger
}

// IssuerOption customizes a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithTimeFunc replaces the clock used for issuing and validating tokens.
func WithTimeFunc(f func() time.Time) IssuerOption {
	return func(i *TokenIssuer) {
		if f != nil {
			i.timeFunc = f
		}
	}
}

// WithLeeway allows for clock skew between services when validating time claims.
func WithLeeway(d time.Duration) IssuerOption {
	return func(i *TokenIssuer) {
		i.leeway = d
	}
}

// WithIssuerLogger sets the component logger.
func WithIssuerLogger(l *slog.Logger) IssuerOption {
	return func(i *TokenIssuer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewTokenIssuer creates an issuer from cfg that persists refresh records in records.
func NewTokenIssuer(cfg config.AuthConfig, records store.RefreshRecordStore, opts ...IssuerOption) (*TokenIssuer, error) {
	if len(cfg.AccessTokenSecret) < minSecretLength || len(cfg.RefreshTokenSecret) < minSecretLength {
		return nil, fmt.Errorf("token secrets must be at least %d characters", minSecretLength)
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTokenLifetimeMinutes <= 0 || cfg.RefreshTokenLifetimeMinutes <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if records == nil {
		return nil, errors.New("refresh record store is required")
	}

	i := &TokenIssuer{
		accessKey:  []byte(cfg.AccessTokenSecret),
		refreshKey: []byte(cfg.RefreshTokenSecret),
		accessTTL:  time.Duration(cfg.AccessTokenLifetimeMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenLifetimeMinutes) * time.Minute,
		timeFunc:   time.Now,
		records:    records,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With(slog.String("component", "token_issuer"))
	return i, nil
}

// Now returns the issuer's current time.
func (i *TokenIssuer) Now() time.Time {
	return i.timeFunc()
}

// AccessTTL returns the configured access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue mints a new pair for identity and persists the refresh record.
// The pair is only returned once the record is durable.
func (i *TokenIssuer) Issue(ctx context.Context, identity *domain.Identity) (*TokenPair, error) {
	log := logger.FromContextOrDefault(ctx, i.logger)

	// JWT NumericDate has second precision; truncating keeps the record and the
	// embedded expiry identical.
	now := i.timeFunc().UTC().Truncate(time.Second)
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)

	access, err := i.sign(i.accessKey, jwtClaims{
		Email:            identity.Email,
		Username:         identity.Username,
		TokenType:        TokenTypeAccess,
		RegisteredClaims: registered(identity.ID, now, accessExp),
	})
	if err != nil {
		log.Error("failed to sign access token",
			slog.String("identity_id", identity.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := i.sign(i.refreshKey, jwtClaims{
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: registered(identity.ID, now, refreshExp),
	})
	if err != nil {
		log.Error("failed to sign refresh token",
			slog.String("identity_id", identity.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record, err := domain.NewRefreshRecord(refresh, identity.ID, now, refreshExp)
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh record: %w", err)
	}
	if err := i.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist refresh record: %w", err)
	}

	log.Debug("token pair issued",
		slog.String("identity_id", identity.ID.String()),
		slog.Time("access_expires_at", accessExp))

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		Identity:         identity.Public(),
	}, nil
}

func registered(identityID uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   identityID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.New().String(),
	}
}

func (i *TokenIssuer) sign(key []byte, claims jwtClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ValidateAccessToken verifies an access token's signature, algorithm, type and expiry.
func (i *TokenIssuer) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	return i.validate(ctx, token, i.accessKey, TokenTypeAccess)
}

// ValidateRefreshToken verifies a refresh token's signature, algorithm, type and expiry.
// It does not consult the store.
func (i *TokenIssuer) ValidateRefreshToken(ctx context.Context, token string) (*Claims, error) {
	return i.validate(ctx, token, i.refreshKey, TokenTypeRefresh)
}

func (i *TokenIssuer) validate(ctx context.Context, token string, key []byte, wantType string) (*Claims, error) {
	log := logger.FromContextOrDefault(ctx, i.logger)

	if token == "" {
		return nil, ErrMissingToken
	}

	now := i.timeFunc()
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("token validation failed: expired", slog.String("token_type", wantType))
			return nil, ErrTokenExpired
		}
		log.Debug("token validation failed",
			slog.String("token_type", wantType),
			slog.String("error", err.Error()))
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != wantType {
		log.Debug("token validation failed: wrong token type",
			slog.String("expected", wantType),
			slog.String("actual", claims.TokenType))
		return nil, ErrWrongTokenType
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	out := &Claims{
		IdentityID: identityID,
		Email:      claims.Email,
		Username:   claims.Username,
		TokenType:  claims.TokenType,
		ID:         claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
