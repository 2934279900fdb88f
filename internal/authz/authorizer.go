package authz

import (
	"context"
)

// Identity is the authenticated principal for one request, derived from a
// validated access token by the request guard. Role and Permissions are the
// claim snapshot from the token; the authorizer re-resolves the effective set
// through the cache so role changes bite within the invalidation window.
type Identity struct {
	UserID      string
	Role        Role
	Permissions []Permission
	SessionID   string
}

// DenyReason is the stable code attached to a denied decision.
type DenyReason string

const (
	DenyMissingPermission DenyReason = "MissingPermission"
	DenyNotOwner          DenyReason = "NotOwner"
)

// Decision is the outcome of one authorization check. Permission is always
// set so a denial can name what was required.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	Permission Permission
}

// Authorizer performs the two-level check: feature permission first, then
// data ownership when the request targets a specific resource.
type Authorizer struct {
	cache     *Cache
	ownership OwnershipResolver
	rules     Rules
	observe   func(Decision)
}

// NewAuthorizer returns an Authorizer resolving snapshots through cache,
// relations through ownership, and matching them with rules.
func NewAuthorizer(cache *Cache, ownership OwnershipResolver, rules Rules) *Authorizer {
	return &Authorizer{cache: cache, ownership: ownership, rules: rules}
}

// Observe registers a callback invoked with every completed decision, for
// metrics. Must be set before the Authorizer is shared between goroutines.
func (a *Authorizer) Observe(fn func(Decision)) {
	a.observe = fn
}

// Authorize decides whether ident may exercise perm, optionally against one
// concrete resource. The error return is for infrastructure failures only;
// policy outcomes always come back as a Decision.
func (a *Authorizer) Authorize(ctx context.Context, ident Identity, perm Permission, ref *ResourceRef) (Decision, error) {
	d, err := a.authorize(ctx, ident, perm, ref)
	if err == nil && a.observe != nil {
		a.observe(d)
	}
	return d, err
}

// super_admin is a code-level bypass, checked before any catalog lookup, so
// permissions added later are covered without touching data.
func (a *Authorizer) authorize(ctx context.Context, ident Identity, perm Permission, ref *ResourceRef) (Decision, error) {
	snap, err := a.cache.Get(ctx, ident.UserID)
	if err != nil {
		return Decision{}, err
	}
	if snap.Role == RoleSuperAdmin {
		return Decision{Allowed: true, Permission: perm}, nil
	}
	if !snap.Has(perm) {
		return Decision{Reason: DenyMissingPermission, Permission: perm}, nil
	}
	if ref == nil {
		return Decision{Allowed: true, Permission: perm}, nil
	}
	if a.rules.SkipsResolver(snap.Role, ref.Type) {
		return Decision{Allowed: true, Permission: perm}, nil
	}
	rel, err := a.ownership.Check(ctx, ident.UserID, ref.Type, ref.ID)
	if err != nil {
		return Decision{}, err
	}
	if a.rules.Satisfies(snap.Role, ref.Type, rel) {
		return Decision{Allowed: true, Permission: perm}, nil
	}
	return Decision{Reason: DenyNotOwner, Permission: perm}, nil
}
