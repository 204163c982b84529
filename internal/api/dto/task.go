package dto

import (
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
)

// CreateTaskRequest represents a request to schedule a cleanup task
type CreateTaskRequest struct {
	ID             string   `json:"id,omitempty"`
	ServerID       string   `json:"server_id"`
	AdminUsernames []string `json:"admin_usernames"`
	StatusFilters  []string `json:"status_filters"`
	IntervalHours  int      `json:"interval_hours"`
}

// ToDomain converts the request for the scheduler
func (r CreateTaskRequest) ToDomain() cleanup.CreateTaskRequest {
	return cleanup.CreateTaskRequest{
		ID:             r.ID,
		ServerID:       r.ServerID,
		AdminUsernames: r.AdminUsernames,
		StatusFilters:  r.StatusFilters,
		IntervalHours:  r.IntervalHours,
	}
}

// TaskResponse represents a cleanup task in API responses
type TaskResponse struct {
	ID             string     `json:"id"`
	ServerID       string     `json:"server_id"`
	AdminUsernames []string   `json:"admin_usernames"`
	StatusFilters  []string   `json:"status_filters"`
	IntervalHours  int        `json:"interval_hours"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      time.Time  `json:"created_at"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        time.Time  `json:"next_run"`
	LastError      string     `json:"last_error,omitempty"`
}

// ListTasksResponse represents the task listing
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// TaskFromDomain maps a task for output
func TaskFromDomain(t *cleanup.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		ServerID:       t.ServerID,
		AdminUsernames: t.AdminUsernames,
		StatusFilters:  t.StatusFilters,
		IntervalHours:  t.IntervalHours,
		Enabled:        t.Enabled,
		CreatedAt:      t.CreatedAt,
		LastRun:        t.LastRun,
		NextRun:        t.NextRun,
		LastError:      t.LastError,
	}
}
