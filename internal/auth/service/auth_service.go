package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"property-platform/access-core/internal/audit"
	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/notify"
	"property-platform/access-core/internal/ratelimit"
	"property-platform/access-core/internal/security"
	sessiondomain "property-platform/access-core/internal/session/domain"
	sessionservice "property-platform/access-core/internal/session/service"
	userdomain "property-platform/access-core/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to response codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotSessionOwner    = errors.New("session belongs to another user")
	ErrWeakPassword       = errors.New("password does not meet policy")
)

// LoginResult holds the tokens and session minted by Login.
type LoginResult struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	SessionID       string
	UserID          string
	Role            authz.Role
	Permissions     []authz.Permission
}

// RefreshResult carries the replacement access token minted by Refresh. The
// refresh token itself is untouched: its lifetime is fixed at login so a
// stolen one cannot keep a session alive indefinitely.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// Blacklist answers whether a token fingerprint has been revoked.
type Blacklist interface {
	Contains(fingerprint string) bool
}

// AuthService implements login, token refresh, logout, session management,
// and password change.
type AuthService struct {
	users     UserRepo
	registry  *sessionservice.Registry
	blacklist Blacklist
	perms     *authz.Cache
	hasher    *security.Hasher
	tokens    *security.TokenProvider
	limiter   *ratelimit.Limiter
	auditor   audit.AuditLogger
	notifier  notify.Notifier
}

// NewAuthService returns an AuthService with the given dependencies. limiter,
// auditor, and notifier may be nil to disable throttling, audit logging, and
// event publishing.
func NewAuthService(
	users UserRepo,
	registry *sessionservice.Registry,
	bl Blacklist,
	perms *authz.Cache,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	limiter *ratelimit.Limiter,
	auditor audit.AuditLogger,
	notifier notify.Notifier,
) *AuthService {
	if auditor == nil {
		auditor = audit.NewLogger(nil, nil)
	}
	return &AuthService{
		users:     users,
		registry:  registry,
		blacklist: bl,
		perms:     perms,
		hasher:    hasher,
		tokens:    tokens,
		limiter:   limiter,
		auditor:   auditor,
		notifier:  notifier,
	}
}

// Login authenticates email/password, opens a session under the per-user cap,
// and returns an access/refresh token pair. Unknown users, wrong passwords,
// and deactivated accounts are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, client sessiondomain.ClientContext) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow(ratelimit.LoginKey(email, client.IP)) {
		s.auditor.LogEvent(ctx, "", "login_throttled", "user:"+email, "")
		return nil, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		s.auditor.LogEvent(ctx, "", "login_failure", "user:"+email, "")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.auditor.LogEvent(ctx, user.ID, "login_failure", "user:"+email, "")
		notify.PublishAsync(s.notifier, &notify.Event{
			Type:   notify.EventLoginFailure,
			UserID: user.ID,
			IP:     client.IP,
		})
		return nil, ErrInvalidCredentials
	}

	snap, err := s.perms.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, user.ID, string(snap.Role), permissionStrings(snap.Permissions))
	if err != nil {
		return nil, err
	}
	refreshToken, _, refreshExp, err := s.tokens.IssueRefresh(sessionID, user.ID)
	if err != nil {
		return nil, err
	}

	sess := &sessiondomain.Session{
		ID:                 sessionID,
		UserID:             user.ID,
		AccessFingerprint:  security.Fingerprint(accessToken),
		AccessExpiresAt:    accessExp,
		RefreshFingerprint: security.Fingerprint(refreshToken),
		RefreshExpiresAt:   refreshExp,
		Client:             client,
	}
	evicted, err := s.registry.Create(ctx, sess)
	if err != nil {
		return nil, err
	}
	for _, victim := range evicted {
		s.auditor.LogEvent(ctx, user.ID, "session_evicted", "session:"+victim.ID,
			fmt.Sprintf(`{"reason":%q}`, sessiondomain.ReasonConcurrentEvicted))
		notify.PublishAsync(s.notifier, &notify.Event{
			Type:        notify.EventSessionEvicted,
			UserID:      user.ID,
			SessionID:   victim.ID,
			DeviceClass: victim.Client.DeviceClass,
		})
	}

	s.auditor.LogEvent(ctx, user.ID, "login", "session:"+sessionID,
		fmt.Sprintf(`{"device_class":%q}`, sess.Client.DeviceClass))
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:        notify.EventLogin,
		UserID:      user.ID,
		SessionID:   sessionID,
		IP:          client.IP,
		DeviceClass: client.DeviceClass,
	})

	return &LoginResult{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
		SessionID:       sessionID,
		UserID:          user.ID,
		Role:            snap.Role,
		Permissions:     snap.Permissions,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The role
// and permission set are re-resolved rather than copied from the old token,
// so grants changed since login take effect here at the latest. The refresh
// token is not rotated; the session's absolute limit bounds its usefulness.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if s.blacklist.Contains(security.Fingerprint(refreshToken)) {
		return nil, ErrTokenRevoked
	}

	outcome, err := s.registry.Touch(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if outcome != sessionservice.OutcomeOK {
		return nil, ErrSessionExpired
	}

	sess, err := s.registry.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Active() {
		return nil, ErrSessionExpired
	}
	if !security.FingerprintEqual(refreshToken, sess.RefreshFingerprint) {
		// Signed by us and named a live session, but not the token bound to
		// it. Treat like a revoked token rather than leaking which part
		// mismatched.
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		_ = s.registry.Revoke(ctx, sess.ID, sessiondomain.ReasonAdminRevoke)
		return nil, ErrTokenRevoked
	}

	snap, err := s.perms.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, _, accessExp, err := s.tokens.IssueAccess(sess.ID, user.ID, string(snap.Role), permissionStrings(snap.Permissions))
	if err != nil {
		return nil, err
	}
	if err := s.registry.ReplaceAccessToken(ctx, sess.ID, security.Fingerprint(accessToken), accessExp); err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotActive) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	return &RefreshResult{AccessToken: accessToken, AccessExpiresAt: accessExp}, nil
}

// Logout revokes the caller's own session and blacklists its tokens.
func (s *AuthService) Logout(ctx context.Context, ident authz.Identity) error {
	if err := s.registry.Revoke(ctx, ident.SessionID, sessiondomain.ReasonLogout); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, ident.UserID, "logout", "session:"+ident.SessionID, "")
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:      notify.EventLogout,
		UserID:    ident.UserID,
		SessionID: ident.SessionID,
	})
	return nil
}

// LogoutAll revokes the caller's sessions. With keepCurrent the session the
// request arrived on survives, which is what "sign out everywhere else"
// needs. Returns how many sessions were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, ident authz.Identity, keepCurrent bool) (int, error) {
	except := ""
	if keepCurrent {
		except = ident.SessionID
	}
	count, err := s.registry.RevokeAll(ctx, ident.UserID, sessiondomain.ReasonLogoutAll, except)
	if err != nil {
		return count, err
	}
	s.auditor.LogEvent(ctx, ident.UserID, "logout_all", "user:"+ident.UserID,
		fmt.Sprintf(`{"revoked":%d,"kept_current":%t}`, count, keepCurrent))
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:      notify.EventLogoutAll,
		UserID:    ident.UserID,
		SessionID: ident.SessionID,
	})
	return count, nil
}

// Sessions lists the caller's active sessions, oldest first.
func (s *AuthService) Sessions(ctx context.Context, ident authz.Identity) ([]*sessiondomain.Session, error) {
	return s.registry.ListActive(ctx, ident.UserID)
}

// RevokeSession revokes one of the caller's sessions by id, e.g. "sign out
// that tablet". Revoking a session that was already revoked is a no-op;
// revoking another user's session is refused.
func (s *AuthService) RevokeSession(ctx context.Context, ident authz.Identity, sessionID string) error {
	sess, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.UserID != ident.UserID {
		return ErrNotSessionOwner
	}
	if !sess.Active() {
		return nil
	}
	if err := s.registry.Revoke(ctx, sessionID, sessiondomain.ReasonLogout); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, ident.UserID, "session_revoked", "session:"+sessionID, "")
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:      notify.EventSessionRevoked,
		UserID:    ident.UserID,
		SessionID: sessionID,
	})
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every other session so stolen tokens die with the old credential.
// The session the change was made on stays alive.
func (s *AuthService) ChangePassword(ctx context.Context, ident authz.Identity, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(currentPassword)); err != nil {
		s.auditor.LogEvent(ctx, user.ID, "password_change_failure", "user:"+user.ID, "")
		return ErrInvalidCredentials
	}
	if msg := passwordPolicyViolation(newPassword); msg != "" {
		return fmt.Errorf("%w: %s", ErrWeakPassword, msg)
	}

	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	count, err := s.registry.RevokeAll(ctx, user.ID, sessiondomain.ReasonCredentialChange, ident.SessionID)
	if err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, user.ID, "password_changed", "user:"+user.ID,
		fmt.Sprintf(`{"revoked":%d}`, count))
	notify.PublishAsync(s.notifier, &notify.Event{
		Type:      notify.EventPasswordChanged,
		UserID:    user.ID,
		SessionID: ident.SessionID,
	})
	return nil
}

func permissionStrings(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// passwordPolicyViolation returns a human-readable reason when the candidate
// password fails policy, or "" when it passes.
func passwordPolicyViolation(password string) string {
	if len(password) < 12 {
		return "password must be at least 12 characters"
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	switch {
	case !hasUpper:
		return "password must contain at least one uppercase letter"
	case !hasLower:
		return "password must contain at least one lowercase letter"
	case !hasNumber:
		return "password must contain at least one number"
	case !hasSymbol:
		return "password must contain at least one symbol"
	}
	return ""
}
