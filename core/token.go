package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSigningKeyBytes is the smallest secret accepted for HS256.
const MinSigningKeyBytes = 32

// SigningKey is the process-wide HMAC secret. It is built once at startup
// and passed by value; the underlying bytes are private and never mutated.
type SigningKey struct {
	secret []byte
}

// NewSigningKey copies secret into an immutable key.
func NewSigningKey(secret []byte) (SigningKey, error) {
	if len(secret) < MinSigningKeyBytes {
		return SigningKey{}, fmt.Errorf("signing key must be at least %d bytes, got %d", MinSigningKeyBytes, len(secret))
	}
	b := make([]byte, len(secret))
	copy(b, secret)
	return SigningKey{secret: b}, nil
}

// TokenClaims is the decoded content of a bearer token.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the claims are past their lifetime at now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenCodec issues and parses HS256 signed tokens.
//
// Parse verifies structure and signature only. Expiry is left to the
// caller; IdentityResolver is the authoritative check.
type TokenCodec struct {
	key SigningKey
	ttl time.Duration
	now func() time.Time
}

// NewTokenCodec returns a codec for key. A nil clock means time.Now.
func NewTokenCodec(key SigningKey, ttl time.Duration, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{key: key, ttl: ttl, now: now}
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject valid from now until now+TTL.
func (c *TokenCodec) Issue(subject string) (string, TokenClaims, error) {
	if strings.TrimSpace(subject) == "" {
		return "", TokenClaims{}, errors.New("token subject is empty")
	}
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.secret)
	if err != nil {
		return "", TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, TokenClaims{
		Subject:   subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse verifies the token MAC and decodes its claims.
func (c *TokenCodec) Parse(token string) (TokenClaims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc,
		func(*jwt.Token) (interface{}, error) { return c.key.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return TokenClaims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return TokenClaims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return TokenClaims{}, fmt.Errorf("%w: missing sub or exp claim", ErrMalformedToken)
	}
	out := TokenClaims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Time}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	return out, nil
}
