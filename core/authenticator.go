package core

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

type principalKey struct{}

// WithPrincipal returns a child context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal bound to ctx, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}

// bearerToken extracts the credential from an Authorization header value.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequestAuthenticator establishes the caller's identity once per request.
type RequestAuthenticator struct {
	resolver *IdentityResolver
}

func NewRequestAuthenticator(resolver *IdentityResolver) *RequestAuthenticator {
	return &RequestAuthenticator{resolver: resolver}
}

// AuthenticateRequest returns ctx with the resolved principal bound to it.
//
// A missing or non-bearer header, or a context that already carries a
// principal, returns ctx untouched with a nil error. A token that fails to
// resolve returns ctx untouched together with the reason; callers treat the
// request as anonymous either way.
func (a *RequestAuthenticator) AuthenticateRequest(ctx context.Context, header http.Header) (context.Context, error) {
	if _, bound := PrincipalFromContext(ctx); bound {
		return ctx, nil
	}
	token, ok := bearerToken(header.Get("Authorization"))
	if !ok {
		return ctx, nil
	}
	p, err := a.resolver.Resolve(ctx, token)
	if err != nil {
		return ctx, err
	}
	return WithPrincipal(ctx, p), nil
}

// Middleware binds the principal to c.Request's context. It never aborts.
func (a *RequestAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := a.AuthenticateRequest(c.Request.Context(), c.Request.Header)
		if err != nil {
			log.Printf("[auth] request_id=%s path=%s continuing anonymous: %v", RequestID(c), c.Request.URL.Path, err)
		} else if ctx != c.Request.Context() {
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
