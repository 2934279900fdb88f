package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	adminservice "property-platform/access-core/internal/admin/service"
	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/server/middleware"
)

// Handler serves the operator endpoints. All routes are mounted behind the
// user:manage permission check; the service enforces the rest.
type Handler struct {
	admin *adminservice.AdminService
}

// NewHandler returns a Handler over the admin service.
func NewHandler(admin *adminservice.AdminService) *Handler {
	return &Handler{admin: admin}
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// AssignRole sets a user's role.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	var req assignRoleRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.admin.AssignRole(r.Context(), *ident, userID, authz.Role(req.Role)); err != nil {
		respondAdminError(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetRolePermissions replaces the permission set of a role.
func (h *Handler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	var req setRolePermissionsRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	role := authz.Role(chi.URLParam(r, "role"))
	perms := make([]authz.Permission, len(req.Permissions))
	for i, p := range req.Permissions {
		perms[i] = authz.Permission(p)
	}
	if err := h.admin.SetRolePermissions(r.Context(), *ident, role, perms); err != nil {
		respondAdminError(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

type forceLogoutResponse struct {
	Revoked int `json:"revoked"`
}

// ForceLogout revokes every session of the target user.
func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	userID := chi.URLParam(r, "userID")
	count, err := h.admin.ForceLogout(r.Context(), *ident, userID)
	if err != nil {
		respondAdminError(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusOK, forceLogoutResponse{Revoked: count})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive activates or deactivates a user account.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, middleware.CodeInvalidToken, "missing or invalid authorization")
		return
	}
	var req setActiveRequest
	if !middleware.DecodeJSON(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.admin.SetActive(r.Context(), *ident, userID, req.Active); err != nil {
		respondAdminError(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusNoContent, nil)
}

func respondAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, adminservice.ErrUserNotFound):
		middleware.RespondError(w, http.StatusNotFound, middleware.CodeUserNotFound, "user not found")
	case errors.Is(err, adminservice.ErrInvalidRole):
		middleware.RespondError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid role")
	default:
		middleware.RespondInternal(w, err)
	}
}
