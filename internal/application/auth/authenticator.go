package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rezkam/taskflow/internal/domain"
)

// Default configuration values.
const (
	DefaultIssuer   = "taskflow"
	DefaultAudience = "taskflow-clients"
	DefaultTokenTTL = 24 * time.Hour

	minSecretLength = 32
)

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("auth secret must be at least 32 bytes")

// Config holds configuration for the Authenticator.
type Config struct {
	Secret   []byte        // HS256 signing key
	Issuer   string        // iss claim written and required
	Audience string        // aud claim written and required
	TokenTTL time.Duration // lifetime of issued tokens
}

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates bearer tokens.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// Option is a functional option for configuring Authenticator.
type Option func(*Authenticator)

// WithClock sets the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates a new authenticator.
// Empty Issuer, Audience and zero TokenTTL get their defaults.
func NewAuthenticator(config Config, opts ...Option) (*Authenticator, error) {
	if len(config.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.Audience == "" {
		config.Audience = DefaultAudience
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	a := &Authenticator{
		secret:   config.Secret,
		issuer:   config.Issuer,
		audience: config.Audience,
		ttl:      config.TokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	return a, nil
}

// IssueToken signs a token for userID and returns it with its expiry.
func (a *Authenticator) IssueToken(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, domain.ErrUserRequired
	}

	now := a.now().UTC()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, issuer, audience and expiry and returns
// the token's claims.
// Returns domain.ErrUnauthorized wrapping the parse failure for any invalid token.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
