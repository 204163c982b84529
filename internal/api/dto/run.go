package dto

import (
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
)

// RunResponse represents a recorded bulk run
type RunResponse struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id,omitempty"`
	ServerID        string    `json:"server_id"`
	Intent          string    `json:"intent"`
	Trigger         string    `json:"trigger"`
	Admins          []string  `json:"admins"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationMs      int64     `json:"duration_ms"`
	TotalUsers      int       `json:"total_users"`
	TotalOperations int       `json:"total_operations"`
	TotalDeleted    int       `json:"total_deleted"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	Error           string    `json:"error,omitempty"`
}

// RunFromDomain maps a run for output
func RunFromDomain(r *cleanup.Run) RunResponse {
	return RunResponse{
		ID:              r.ID,
		TaskID:          r.TaskID,
		ServerID:        r.ServerID,
		Intent:          string(r.Intent),
		Trigger:         string(r.Trigger),
		Admins:          r.Admins,
		Status:          string(r.Status),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationMs:      r.Duration().Milliseconds(),
		TotalUsers:      r.TotalUsers,
		TotalOperations: r.TotalOperations,
		TotalDeleted:    r.TotalDeleted,
		Successful:      r.Successful,
		Failed:          r.Failed,
		Skipped:         r.Skipped,
		Error:           r.Error,
	}
}

// ServerResponse is a configured panel without its credentials
type ServerResponse struct {
	ID     string `json:"id"`
	Remark string `json:"remark"`
	Type   string `json:"type"`
	Host   string `json:"host"`
}
