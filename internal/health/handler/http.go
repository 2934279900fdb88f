package handler

import (
	"context"
	"net/http"
	"time"

	"property-platform/access-core/internal/server/middleware"
)

// Pinger reports backing-store reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves liveness and readiness probes for load balancers and
// orchestrators.
type Handler struct {
	db Pinger
}

// NewHandler returns a health Handler. db may be nil; readiness then skips the
// database check.
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports process liveness. It never consults dependencies: a wedged
// database must not get the process restarted.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	middleware.RespondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Ready reports whether the service can handle traffic, checking the database
// with a short timeout.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK
	overall := "ok"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
			overall = "unavailable"
		} else {
			checks["database"] = "ok"
		}
	}

	middleware.RespondJSON(w, status, healthResponse{Status: overall, Checks: checks})
}
