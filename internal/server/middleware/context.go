package middleware

import (
	"context"

	"property-platform/access-core/internal/authz"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated identity.
// Handlers read it back via IdentityFrom.
func WithIdentity(ctx context.Context, ident *authz.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom returns the authenticated identity from ctx and true if set;
// otherwise nil, false.
func IdentityFrom(ctx context.Context) (*authz.Identity, bool) {
	v, ok := ctx.Value(identityKey).(*authz.Identity)
	return v, ok
}

// WithClientIP returns a context carrying the request's client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from ctx, or "unknown" if not set. Satisfies
// audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
