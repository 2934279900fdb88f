// Package handler serves the audit trail over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	auditrepo "property-platform/access-core/internal/audit/repository"
	"property-platform/access-core/internal/server/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler exposes read access to recorded audit events.
type Handler struct {
	logs auditrepo.Repository
}

// NewHandler returns an audit handler reading from logs.
func NewHandler(logs auditrepo.Repository) *Handler {
	return &Handler{logs: logs}
}

type entryView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListByUser returns one page of the user's audit events, newest first.
// Query parameters: limit (default 50, capped at 200) and offset.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.logs.ListByUser(r.Context(), userID, int32(limit), int32(offset))
	if err != nil {
		middleware.RespondInternal(w, err)
		return
	}

	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Target:    e.Target,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	middleware.RespondJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, fallback int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
