// Package blacklist tracks revoked token fingerprints until the tokens they
// block expire on their own. The in-memory store answers every lookup; the
// Postgres repository is a durability layer used to rebuild the store after a
// restart.
package blacklist

import "time"

// TokenClass says which kind of token a fingerprint belongs to.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// Reason records why a token or session was revoked.
type Reason string

const (
	ReasonLogout            Reason = "LOGOUT"
	ReasonLogoutAll         Reason = "LOGOUT_ALL"
	ReasonIdleTimeout       Reason = "IDLE_TIMEOUT"
	ReasonAbsoluteTimeout   Reason = "ABSOLUTE_TIMEOUT"
	ReasonCredentialChange  Reason = "CREDENTIAL_CHANGE"
	ReasonAdminRevoke       Reason = "ADMIN_REVOKE"
	ReasonConcurrentEvicted Reason = "CONCURRENT_EVICTED"
)

// Entry is one revoked token fingerprint. ExpiresAt mirrors the expiry of the
// token itself: once the token is past its own exp claim the entry blocks
// nothing, so lookups ignore it and the sweeper drops it.
type Entry struct {
	Fingerprint string
	Class       TokenClass
	UserID      string
	SessionID   string
	Reason      Reason
	RevokedAt   time.Time
	ExpiresAt   time.Time
}
