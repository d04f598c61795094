// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/FocuswithJustin/GitaCompanion/core/errors"
)

const (
	// Issuer is the iss claim of every token.
	Issuer = "gita-companion"
	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 30 * 24 * time.Hour
	// MinSecretLength is the shortest accepted signing secret.
	MinSecretLength = 16
)

// TokenIssuer signs and verifies HS256 tokens whose subject is a user ID.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a TokenIssuer.
type Option func(*TokenIssuer)

// WithTTL overrides DefaultTokenTTL.
func WithTTL(ttl time.Duration) Option {
	return func(t *TokenIssuer) { t.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret string, opts ...Option) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters (got %d)", MinSecretLength, len(secret))
	}
	t := &TokenIssuer{secret: []byte(secret), ttl: DefaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue returns a signed token for userID.
func (t *TokenIssuer) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := t.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of token and returns its
// subject. Every failure is an *errors.AuthError.
func (t *TokenIssuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.NewAuth("missing token", nil)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", apperrors.NewAuth("token has no subject", nil)
	}
	return claims.Subject, nil
}

// mapJWTError translates jwt library errors to auth errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.NewAuth("token expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.NewAuth("invalid token signature", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.NewAuth("malformed token", err)
	default:
		return apperrors.NewAuth("invalid token", err)
	}
}
