package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/guard"
)

const bearerPrefix = "bearer "

// CaptureClientIP stores the request's client IP in the context for audit
// logging. Expects chi's RealIP middleware to have already folded
// X-Forwarded-For / X-Real-IP into RemoteAddr.
func CaptureClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}

// Authenticate runs the guard on the bearer token and attaches the resulting
// identity to the request context. Requests failing any step of the pipeline
// get a 401 with a code naming which step failed.
func Authenticate(g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				RespondError(w, http.StatusUnauthorized, CodeInvalidToken, "missing or invalid authorization")
				return
			}
			ident, err := g.Authenticate(r.Context(), token)
			if err != nil {
				code, ok := guardErrorCode(err)
				if !ok {
					RespondInternal(w, err)
					return
				}
				RespondError(w, http.StatusUnauthorized, code, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// guardErrorCode maps a guard sentinel to its response code. ok is false for
// infrastructure errors, which become a 500.
func guardErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, guard.ErrTokenRevoked):
		return CodeRevoked, true
	case errors.Is(err, guard.ErrIdleExpired):
		return CodeIdleExpired, true
	case errors.Is(err, guard.ErrAbsoluteExpired):
		return CodeAbsoluteExpired, true
	case errors.Is(err, guard.ErrSessionNotFound):
		return CodeSessionNotFound, true
	case errors.Is(err, guard.ErrInvalidToken):
		return CodeInvalidToken, true
	}
	return "", false
}

// RequirePermission guards a route with a feature-level permission check (no
// resource in play). Handlers that check a concrete resource call Authorize
// themselves instead.
func RequirePermission(a *authz.Authorizer, perm authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Authorize(w, r, a, perm, nil) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize runs the two-level authorization check and writes the 403 itself
// on deny. Returns true when the handler may proceed.
func Authorize(w http.ResponseWriter, r *http.Request, a *authz.Authorizer, perm authz.Permission, ref *authz.ResourceRef) bool {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, CodeInvalidToken, "missing or invalid authorization")
		return false
	}
	decision, err := a.Authorize(r.Context(), *ident, perm, ref)
	if err != nil {
		RespondInternal(w, err)
		return false
	}
	if !decision.Allowed {
		code := CodeMissingPermission
		msg := "permission required"
		if decision.Reason == authz.DenyNotOwner {
			code = CodeNotOwner
			msg = "not related to this resource"
		}
		RespondDenied(w, code, msg, string(decision.Permission))
		return false
	}
	return true
}

// ExtractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
