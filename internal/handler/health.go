package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backing-store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. db may be nil when the server
// runs without a database.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports service and database status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			dbStatus = "unreachable"
		}
	}

	respondJSON(w, status, map[string]string{
		"status":   overall,
		"database": dbStatus,
	})
}
