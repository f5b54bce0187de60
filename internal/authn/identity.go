// Package authn mediates caller identity for requests passing through
// keygate. Internal callers arrive pre-authenticated by the upstream
// reverse proxy, which injects trusted identity headers; this package
// extracts that identity and swaps it for a fresh delegated gateway key.
package authn

import (
	"context"
	"net/http"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Identity is a caller identity established from trusted proxy headers.
type Identity struct {
	// Email is the authenticated email address. Always present.
	Email string

	// User is the proxy-reported username, when the proxy sends one.
	User mo.Option[string]

	// AccountID is the resolved gateway account, set once resolution
	// succeeds. Empty while unresolved.
	AccountID string
}

// FromHeaders extracts a caller identity from trusted proxy headers.
// Headers are checked in configured order; the first non-empty value wins.
// Returns None when no email header is present, meaning the caller is not
// an internal user.
func FromHeaders(h http.Header, emailHeaders, userHeaders []string) mo.Option[Identity] {
	email, found := firstHeader(h, emailHeaders)
	if !found {
		return mo.None[Identity]()
	}

	ident := Identity{Email: email}
	if user, ok := firstHeader(h, userHeaders); ok {
		ident.User = mo.Some(user)
	}
	return mo.Some(ident)
}

// firstHeader returns the first non-empty value among the named headers.
func firstHeader(h http.Header, names []string) (string, bool) {
	value, found := lo.Find(lo.Map(names, func(name string, _ int) string {
		return h.Get(name)
	}), func(v string) bool {
		return v != ""
	})
	return value, found
}

// contextKey is the private type for authn context values.
type contextKey struct{}

// WithIdentity attaches a resolved identity to the request context.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// IdentityFromContext returns the identity attached by the middleware,
// if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(contextKey{}).(Identity)
	return ident, ok
}
