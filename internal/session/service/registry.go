package service

import (
	"context"
	"errors"
	"time"

	"property-platform/access-core/internal/blacklist"
	"property-platform/access-core/internal/session/domain"
)

// ErrSessionNotActive is returned when a write targets a session that is
// missing or already revoked.
var ErrSessionNotActive = errors.New("session is not active")

// Outcome classifies the result of touching a session.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeIdleExpired
	OutcomeAbsoluteExpired
	OutcomeNotFound
)

// String returns the outcome name for logs and error payloads.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeIdleExpired:
		return "IdleExpired"
	case OutcomeAbsoluteExpired:
		return "AbsoluteExpired"
	case OutcomeNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Repo is the minimal session repository needed by the registry.
type Repo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string, at time.Time, reason domain.RevokeReason) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	UpdateAccessToken(ctx context.Context, id, fingerprint string, expiresAt time.Time) error
}

// Blacklist records revoked token fingerprints so guarded requests reject
// them immediately.
type Blacklist interface {
	Add(ctx context.Context, e blacklist.Entry) error
}

// Registry owns the session lifecycle: creation under the per-user
// concurrency cap, activity tracking with idle and absolute timeouts, and
// revocation with token blacklisting.
type Registry struct {
	sessions      Repo
	blacklist     Blacklist
	idleTimeout   time.Duration
	absoluteTTL   time.Duration
	maxConcurrent int
	locks         *keyedMutex
	now           func() time.Time
}

// NewRegistry returns a Registry enforcing the given timeouts and per-user
// session cap.
func NewRegistry(sessions Repo, bl Blacklist, idleTimeout, absoluteTimeout time.Duration, maxConcurrent int) *Registry {
	return &Registry{
		sessions:      sessions,
		blacklist:     bl,
		idleTimeout:   idleTimeout,
		absoluteTTL:   absoluteTimeout,
		maxConcurrent: maxConcurrent,
		locks:         newKeyedMutex(),
		now:           time.Now,
	}
}

// Create inserts a fully populated session, evicting the user's oldest
// sessions first if the concurrency cap is reached. Evicted sessions are
// revoked with CONCURRENT_EVICTED and their tokens blacklisted; they are
// returned so the caller can report them. The count-evict-insert sequence is
// serialized per user, so concurrent logins cannot overshoot the cap.
func (r *Registry) Create(ctx context.Context, s *domain.Session) ([]*domain.Session, error) {
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivityAt = s.CreatedAt
	s.AbsoluteExpiresAt = s.CreatedAt.Add(r.absoluteTTL)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ul := r.locks.lock(userKey(s.UserID))
	defer r.locks.unlock(ul)

	active, err := r.sessions.ListActiveByUser(ctx, s.UserID)
	if err != nil {
		return nil, err
	}

	var evicted []*domain.Session
	for len(active) >= r.maxConcurrent {
		victim := oldest(active)
		if err := r.revoke(ctx, victim, domain.ReasonConcurrentEvicted); err != nil {
			return evicted, err
		}
		evicted = append(evicted, victim)
		active = without(active, victim.ID)
	}

	if err := r.sessions.Create(ctx, s); err != nil {
		return evicted, err
	}
	return evicted, nil
}

// Touch records activity on the session and reports whether it is still
// usable. The absolute limit is checked before the idle limit so a session
// that exceeded both reports AbsoluteExpired. Expiry detected here revokes
// the session and blacklists its tokens before the outcome is returned.
func (r *Registry) Touch(ctx context.Context, sessionID string) (Outcome, error) {
	sl := r.locks.lock(sessionKey(sessionID))
	defer r.locks.unlock(sl)

	s, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return OutcomeNotFound, err
	}
	if s == nil || !s.Active() {
		return OutcomeNotFound, nil
	}

	now := r.now().UTC()
	if now.After(s.AbsoluteExpiresAt) {
		if err := r.revokeLocked(ctx, s, domain.ReasonAbsoluteTimeout); err != nil {
			return OutcomeAbsoluteExpired, err
		}
		return OutcomeAbsoluteExpired, nil
	}
	if now.Sub(s.LastActivityAt) > r.idleTimeout {
		if err := r.revokeLocked(ctx, s, domain.ReasonIdleTimeout); err != nil {
			return OutcomeIdleExpired, err
		}
		return OutcomeIdleExpired, nil
	}

	if err := r.sessions.UpdateLastActivity(ctx, sessionID, now); err != nil {
		return OutcomeOK, err
	}
	return OutcomeOK, nil
}

// Get returns the session with the given id, or nil if unknown.
func (r *Registry) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return r.sessions.GetByID(ctx, sessionID)
}

// ListActive returns the user's unrevoked sessions, oldest first.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.sessions.ListActiveByUser(ctx, userID)
}

// Revoke ends the session and blacklists both of its token fingerprints.
// Revoking a missing or already-revoked session is a no-op so logout stays
// idempotent.
func (r *Registry) Revoke(ctx context.Context, sessionID string, reason domain.RevokeReason) error {
	sl := r.locks.lock(sessionKey(sessionID))
	defer r.locks.unlock(sl)

	s, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || !s.Active() {
		return nil
	}
	return r.revokeLocked(ctx, s, reason)
}

// RevokeAll revokes every active session of the user except the one named by
// exceptSessionID (pass "" to revoke them all) and returns how many were
// revoked.
func (r *Registry) RevokeAll(ctx context.Context, userID string, reason domain.RevokeReason, exceptSessionID string) (int, error) {
	ul := r.locks.lock(userKey(userID))
	defer r.locks.unlock(ul)

	active, err := r.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, s := range active {
		if s.ID == exceptSessionID {
			continue
		}
		if err := r.revoke(ctx, s, reason); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// ReplaceAccessToken binds a freshly issued access token to the session after
// a refresh, so a later revocation blacklists the newest token rather than a
// stale one.
func (r *Registry) ReplaceAccessToken(ctx context.Context, sessionID, fingerprint string, expiresAt time.Time) error {
	sl := r.locks.lock(sessionKey(sessionID))
	defer r.locks.unlock(sl)

	s, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || !s.Active() {
		return ErrSessionNotActive
	}
	return r.sessions.UpdateAccessToken(ctx, sessionID, fingerprint, expiresAt)
}

// revoke serializes on the session key before revoking. Callers holding the
// user key may call it; the lock order is always user before session.
func (r *Registry) revoke(ctx context.Context, s *domain.Session, reason domain.RevokeReason) error {
	sl := r.locks.lock(sessionKey(s.ID))
	defer r.locks.unlock(sl)
	return r.revokeLocked(ctx, s, reason)
}

func (r *Registry) revokeLocked(ctx context.Context, s *domain.Session, reason domain.RevokeReason) error {
	now := r.now().UTC()
	if err := r.sessions.Revoke(ctx, s.ID, now, reason); err != nil {
		return err
	}

	entries := []blacklist.Entry{
		{
			Fingerprint: s.AccessFingerprint,
			Class:       blacklist.ClassAccess,
			UserID:      s.UserID,
			SessionID:   s.ID,
			Reason:      blacklist.Reason(reason),
			RevokedAt:   now,
			ExpiresAt:   s.AccessExpiresAt,
		},
		{
			Fingerprint: s.RefreshFingerprint,
			Class:       blacklist.ClassRefresh,
			UserID:      s.UserID,
			SessionID:   s.ID,
			Reason:      blacklist.Reason(reason),
			RevokedAt:   now,
			ExpiresAt:   s.RefreshExpiresAt,
		},
	}
	for _, e := range entries {
		if err := r.blacklist.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// oldest picks the eviction victim: smallest creation time, ties broken by
// smallest id.
func oldest(sessions []*domain.Session) *domain.Session {
	victim := sessions[0]
	for _, s := range sessions[1:] {
		if s.CreatedAt.Before(victim.CreatedAt) ||
			(s.CreatedAt.Equal(victim.CreatedAt) && s.ID < victim.ID) {
			victim = s
		}
	}
	return victim
}

func without(sessions []*domain.Session, id string) []*domain.Session {
	out := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func userKey(id string) string    { return "u:" + id }
func sessionKey(id string) string { return "s:" + id }
