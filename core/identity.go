package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IdentityResolver turns a bearer token into a live Principal.
type IdentityResolver struct {
	codec *TokenCodec
	users CredentialStore
}

// NewIdentityResolver shares the codec's key and clock.
func NewIdentityResolver(codec *TokenCodec, users CredentialStore) *IdentityResolver {
	return &IdentityResolver{codec: codec, users: users}
}

// Resolve verifies token, re-checks its expiry against the current time and
// looks the subject up in the credential store. Tokens issued before the
// subject's account was created are rejected with ErrUnknownSubject.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (Principal, error) {
	claims, err := r.codec.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	if claims.Expired(r.codec.now()) {
		return Principal{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	u, err := r.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return Principal{}, fmt.Errorf("%w: %s", ErrUnknownSubject, claims.Subject)
		}
		return Principal{}, fmt.Errorf("lookup subject %s: %w", claims.Subject, err)
	}
	// A token older than the account it names was issued to an earlier
	// holder of the username. Token times have second precision.
	if claims.IssuedAt.Before(u.CreatedAt.Truncate(time.Second)) {
		return Principal{}, fmt.Errorf("%w: %s was issued before the account was created", ErrUnknownSubject, claims.Subject)
	}
	return u.Principal(), nil
}

// Validate reports whether token resolves to expectedUsername.
// It never returns an error: any failure yields false.
func (r *IdentityResolver) Validate(ctx context.Context, token, expectedUsername string) bool {
	p, err := r.Resolve(ctx, token)
	if err != nil {
		return false
	}
	return p.Username == expectedUsername
}
