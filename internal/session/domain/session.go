package domain

import (
	"errors"
	"time"
)

// RevokeReason says why a session ended. The value is stored on the session
// row and on the blacklist entries written for its tokens.
type RevokeReason string

const (
	ReasonLogout            RevokeReason = "LOGOUT"
	ReasonLogoutAll         RevokeReason = "LOGOUT_ALL"
	ReasonIdleTimeout       RevokeReason = "IDLE_TIMEOUT"
	ReasonAbsoluteTimeout   RevokeReason = "ABSOLUTE_TIMEOUT"
	ReasonCredentialChange  RevokeReason = "CREDENTIAL_CHANGE"
	ReasonAdminRevoke       RevokeReason = "ADMIN_REVOKE"
	ReasonConcurrentEvicted RevokeReason = "CONCURRENT_EVICTED"
)

// ClientContext captures where a session was opened from.
type ClientContext struct {
	IP          string
	UserAgent   string
	DeviceClass string
}

// Session represents one login on one device. It tracks fingerprints of the
// tokens currently bound to it so revocation can blacklist them without ever
// storing the tokens themselves.
type Session struct {
	ID                 string
	UserID             string
	AccessFingerprint  string
	AccessExpiresAt    time.Time
	RefreshFingerprint string
	RefreshExpiresAt   time.Time
	Client             ClientContext
	CreatedAt          time.Time
	LastActivityAt     time.Time
	AbsoluteExpiresAt  time.Time
	RevokedAt          *time.Time // nil while the session is live
	RevokeReason       RevokeReason
}

// Active reports whether the session has been revoked. Idle and absolute
// expiry are decided by the registry on touch, not stored here.
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

// Validate checks required fields before the session is persisted.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.UserID == "" {
		return errors.New("user id is required")
	}
	if s.AccessFingerprint == "" || s.RefreshFingerprint == "" {
		return errors.New("token fingerprints are required")
	}
	if s.CreatedAt.IsZero() {
		return errors.New("created at is required")
	}
	if !s.AbsoluteExpiresAt.After(s.CreatedAt) {
		return errors.New("absolute expiry must be after creation")
	}
	return nil
}
