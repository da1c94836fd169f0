// Package auth resolves bearer tokens to a caller identity and carries
// that identity through request contexts.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidToken signals that a presented token is unknown or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Tier   string
}

// TokenStore resolves bearer tokens to identities. Implementations decide
// where tokens come from (an identity provider, a session table, a static
// map for tests).
type TokenStore interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Context key type (unexported to prevent collisions).
type identityKey struct{}

var ctxKeyIdentity = identityKey{}

// ContextWithIdentity returns a context carrying the caller identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext retrieves the caller identity from the context.
// Returns a zero Identity and false if none was set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Returns empty string if the header is missing or malformed.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
