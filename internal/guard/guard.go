// Package guard authenticates the bearer token on every protected request.
// The check order is fixed: token signature and expiry first, then the
// revocation blacklist, then the session's idle and absolute limits. Each
// step only runs when the previous one passed, so a revoked token never
// reaches the session store and an expired session never builds an identity.
package guard

import (
	"context"
	"errors"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/security"
	sessionservice "property-platform/access-core/internal/session/service"
)

// Sentinel errors for guarded requests; the HTTP layer maps them to 401
// response codes.
var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrTokenRevoked    = errors.New("token has been revoked")
	ErrIdleExpired     = errors.New("session expired due to inactivity")
	ErrAbsoluteExpired = errors.New("session exceeded its maximum lifetime")
	ErrSessionNotFound = errors.New("session not found")
)

// TokenValidator checks an access token's signature and registered claims.
type TokenValidator interface {
	ValidateAccess(token string) (*security.AccessClaims, error)
}

// Blacklist answers whether a token fingerprint has been revoked.
type Blacklist interface {
	Contains(fingerprint string) bool
}

// SessionRegistry is the slice of the session registry the guard needs.
type SessionRegistry interface {
	Touch(ctx context.Context, sessionID string) (sessionservice.Outcome, error)
}

// Guard runs the authentication pipeline for protected requests.
type Guard struct {
	tokens    TokenValidator
	blacklist Blacklist
	registry  SessionRegistry
}

// New returns a Guard over the given validator, blacklist, and registry.
func New(tokens TokenValidator, bl Blacklist, registry SessionRegistry) *Guard {
	return &Guard{tokens: tokens, blacklist: bl, registry: registry}
}

// Authenticate validates rawToken and returns the identity to attach to the
// request. The blacklist is consulted before the session store so revoked
// tokens are rejected even when the session row still looks live, and the
// session is touched before the identity is built so activity tracking and
// timeout enforcement cover every authenticated request.
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (*authz.Identity, error) {
	claims, err := g.tokens.ValidateAccess(rawToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if g.blacklist.Contains(security.Fingerprint(rawToken)) {
		return nil, ErrTokenRevoked
	}

	outcome, err := g.registry.Touch(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case sessionservice.OutcomeOK:
	case sessionservice.OutcomeIdleExpired:
		return nil, ErrIdleExpired
	case sessionservice.OutcomeAbsoluteExpired:
		return nil, ErrAbsoluteExpired
	default:
		return nil, ErrSessionNotFound
	}

	perms := make([]authz.Permission, len(claims.Permissions))
	for i, p := range claims.Permissions {
		perms[i] = authz.Permission(p)
	}
	return &authz.Identity{
		UserID:      claims.Subject,
		Role:        authz.Role(claims.Role),
		Permissions: perms,
		SessionID:   claims.SessionID,
	}, nil
}
