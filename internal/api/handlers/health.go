package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// SchedulerProbe reports whether the scheduler loop is running
type SchedulerProbe interface {
	IsRunning() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *sql.DB
	scheduler SchedulerProbe
	logger    *logger.Logger
}

// NewHealthHandler creates a new health handler. db and scheduler may be nil.
func NewHealthHandler(db *sql.DB, scheduler SchedulerProbe, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, scheduler: scheduler, logger: log}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.ErrorWithErr(err, "Readiness check: database ping failed")
			checks["database"] = "unavailable"
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.scheduler != nil {
		if h.scheduler.IsRunning() {
			checks["scheduler"] = "ok"
		} else {
			checks["scheduler"] = "stopped"
			ready = false
		}
	}

	if !ready {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse{
			Error: utils.ErrorDetail{
				Code:    "SERVICE_UNAVAILABLE",
				Message: "service is not ready",
				Details: checks,
			},
		})
		return
	}
	utils.WriteSuccess(w, http.StatusOK, checks)
}
