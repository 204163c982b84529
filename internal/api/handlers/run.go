package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/panelbot/internal/api/dto"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// RunHandler handles run history requests
type RunHandler struct {
	runs   cleanup.RunRepository
	logger *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs cleanup.RunRepository, log *logger.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: log}
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := cleanup.RunFilter{
		TaskID:   q.Get("task_id"),
		ServerID: q.Get("server_id"),
		Intent:   cleanup.Intent(q.Get("intent")),
	}
	switch filter.Intent {
	case "", cleanup.IntentAssignment, cleanup.IntentCleanup:
	default:
		utils.WriteError(w, errors.BadRequest("intent must be assignment or cleanup"))
		return
	}
	if since := q.Get("since"); since != "" {
		from, err := time.Parse(time.RFC3339, since)
		if err != nil {
			utils.WriteError(w, errors.BadRequest("since must be an RFC 3339 timestamp"))
			return
		}
		filter.From = &from
	}

	page := utils.ParsePaginationParams(r)
	runs, total, err := h.runs.ListRuns(r.Context(), filter, page.PageSize, page.Offset)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list runs")
		return
	}

	out := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.RunFromDomain(run))
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(out, page.Page, page.PageSize, total))
}

// Get handles GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to get run")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.RunFromDomain(run))
}
