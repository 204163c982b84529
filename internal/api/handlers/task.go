package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/panelbot/internal/api/dto"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// TaskHandler handles cleanup task requests
type TaskHandler struct {
	scheduler cleanup.Scheduler
	logger    *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(scheduler cleanup.Scheduler, log *logger.Logger) *TaskHandler {
	return &TaskHandler{scheduler: scheduler, logger: log}
}

// List handles GET /api/v1/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.scheduler.ListTasks(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to list tasks")
		return
	}

	resp := dto.ListTasksResponse{Tasks: make([]dto.TaskResponse, 0, len(tasks)), Total: len(tasks)}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, dto.TaskFromDomain(t))
	}
	utils.WriteSuccess(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err, "Failed to decode task")
		return
	}

	t, err := h.scheduler.AddTask(r.Context(), req.ToDomain())
	if err != nil {
		respondError(w, h.logger, err, "Failed to create task")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, dto.TaskFromDomain(t))
}

// Get handles GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.scheduler.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to get task")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.TaskFromDomain(t))
}

// Delete handles DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RemoveTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enable handles POST /api/v1/tasks/{id}/enable
func (h *TaskHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// Disable handles POST /api/v1/tasks/{id}/disable
func (h *TaskHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *TaskHandler) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	var err error
	if enabled {
		err = h.scheduler.EnableTask(r.Context(), id)
	} else {
		err = h.scheduler.DisableTask(r.Context(), id)
	}
	if err != nil {
		respondError(w, h.logger, err, "Failed to update task")
		return
	}

	t, err := h.scheduler.GetTask(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get task")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.TaskFromDomain(t))
}

// Run handles POST /api/v1/tasks/{id}/run. The run record is returned
// even when the run itself failed.
func (h *TaskHandler) Run(w http.ResponseWriter, r *http.Request) {
	run, err := h.scheduler.RunTask(r.Context(), chi.URLParam(r, "id"))
	if run == nil {
		respondError(w, h.logger, err, "Failed to run task")
		return
	}
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"task_id": run.TaskID,
			"status":  string(run.Status),
		}).WarnWithErr(err, "Manual task run failed")
	}
	utils.WriteSuccess(w, http.StatusOK, dto.RunFromDomain(run))
}
