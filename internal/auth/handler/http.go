package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authservice "property-platform/access-core/internal/auth/service"
	"property-platform/access-core/internal/server/middleware"
	sessiondomain "property-platform/access-core/internal/session/domain"
)

// Handler serves the authentication and session endpoints.
type Handler struct {
	auth *authservice.AuthService
}

// NewHandler returns a Handler over the auth service.
func NewHandler(auth *authservice.AuthService) *Handler {
	return &Handler{auth: auth}
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DeviceClass string `json:"deviceClass"`
}

type loginResponse struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	SessionID       string    `json:"sessionId"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Login authenticates email/password and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	deviceClass := req.DeviceClass
	if deviceClass == "" {
		deviceClass = classifyDevice(r.UserAgent())
	}
	client := sessiondomain.ClientContext{
		IP:          middleware.ClientIP(r.Context()),
		UserAgent:   r.UserAgent(),
		DeviceClass: deviceClass,
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, client)
	if err != nil {
		switch {
		case errors.Is(err, authservice.ErrRateLimited):
			middleware.RespondError(w, http.StatusTooManyRequests, middleware.CodeRateLimited, "too many login attempts, try again later")
		case errors.Is(err, authservice.ErrInvalidCredentials):
			middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidCredentials, "invalid credentials")
		default:
			middleware.RespondInternal(w, err)
		}
		return
	}
	middleware.RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:     res.AccessToken,
		RefreshToken:    res.RefreshToken,
		SessionID:       res.SessionID,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Refresh exchanges a refresh token for a new access token. The response
// carries no refresh token: the one presented stays valid until its session
// ends.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, authservice.ErrInvalidToken):
			middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "invalid or expired refresh token")
		case errors.Is(err, authservice.ErrTokenRevoked):
			middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeTokenRevoked, "refresh token has been revoked")
		case errors.Is(err, authservice.ErrSessionExpired):
			middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeSessionExpired, "session has expired, log in again")
		default:
			middleware.RespondInternal(w, err)
		}
		return
	}
	middleware.RespondJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

// Logout revokes the caller's session. Idempotent: a second logout with the
// same (now blacklisted) token fails authentication instead.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	if err := h.auth.Logout(r.Context(), *ident); err != nil {
		middleware.RespondInternal(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

type logoutAllRequest struct {
	IncludeCurrent bool `json:"includeCurrent"`
}

type logoutAllResponse struct {
	Revoked int `json:"revoked"`
}

// LogoutAll revokes the caller's other sessions, or every session when the
// body asks for includeCurrent.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	var req logoutAllRequest
	if r.ContentLength > 0 && !middleware.DecodeJSON(w, r, &req) {
		return
	}
	count, err := h.auth.LogoutAll(r.Context(), *ident, !req.IncludeCurrent)
	if err != nil {
		middleware.RespondInternal(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusOK, logoutAllResponse{Revoked: count})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the caller's password and kills their other sessions.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	var req changePasswordRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), *ident, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, authservice.ErrInvalidCredentials):
			middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidCredentials, "invalid credentials")
		case errors.Is(err, authservice.ErrWeakPassword):
			middleware.RespondError(w, http.StatusBadRequest, middleware.CodeWeakPassword, err.Error())
		default:
			middleware.RespondInternal(w, err)
		}
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

type sessionView struct {
	SessionID      string     `json:"sessionId"`
	Client         clientView `json:"clientContext"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	IsCurrent      bool       `json:"isCurrent"`
}

type clientView struct {
	IP          string `json:"ip"`
	UserAgent   string `json:"userAgent"`
	DeviceClass string `json:"deviceClass"`
}

// ListSessions returns the caller's active sessions, oldest first, marking the
// one this request arrived on.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	sessions, err := h.auth.Sessions(r.Context(), *ident)
	if err != nil {
		middleware.RespondInternal(w, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionView{
			SessionID: s.ID,
			Client: clientView{
				IP:          s.Client.IP,
				UserAgent:   s.Client.UserAgent,
				DeviceClass: s.Client.DeviceClass,
			},
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			IsCurrent:      s.ID == ident.SessionID,
		})
	}
	middleware.RespondJSON(w, http.StatusOK, out)
}

// RevokeSession revokes one of the caller's sessions by id.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.auth.RevokeSession(r.Context(), *ident, sessionID); err != nil {
		switch {
		case errors.Is(err, authservice.ErrSessionNotFound):
			middleware.RespondError(w, http.StatusNotFound, middleware.CodeSessionNotFound, "session not found")
		case errors.Is(err, authservice.ErrNotSessionOwner):
			middleware.RespondError(w, http.StatusForbidden, middleware.CodeNotOwner, "session belongs to another user")
		default:
			middleware.RespondInternal(w, err)
		}
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

// classifyDevice buckets a User-Agent into web, mobile, or api. Clients that
// know better send deviceClass in the login request instead.
func classifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "api"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "mobile"
	case strings.Contains(ua, "mozilla"):
		return "web"
	default:
		return "api"
	}
}
