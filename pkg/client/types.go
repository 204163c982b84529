package client

import "time"

// Task is a scheduled cleanup task
type Task struct {
	ID             string     `json:"id" yaml:"id"`
	ServerID       string     `json:"server_id" yaml:"server_id"`
	AdminUsernames []string   `json:"admin_usernames" yaml:"admin_usernames"`
	StatusFilters  []string   `json:"status_filters" yaml:"status_filters"`
	IntervalHours  int        `json:"interval_hours" yaml:"interval_hours"`
	Enabled        bool       `json:"enabled" yaml:"enabled"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	LastRun        *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	NextRun        time.Time  `json:"next_run" yaml:"next_run"`
	LastError      string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Run is a recorded bulk run
type Run struct {
	ID              string    `json:"id" yaml:"id"`
	TaskID          string    `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	ServerID        string    `json:"server_id" yaml:"server_id"`
	Intent          string    `json:"intent" yaml:"intent"`
	Trigger         string    `json:"trigger" yaml:"trigger"`
	Admins          []string  `json:"admins" yaml:"admins"`
	Status          string    `json:"status" yaml:"status"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time `json:"finished_at" yaml:"finished_at"`
	DurationMs      int64     `json:"duration_ms" yaml:"duration_ms"`
	TotalUsers      int       `json:"total_users" yaml:"total_users"`
	TotalOperations int       `json:"total_operations" yaml:"total_operations"`
	TotalDeleted    int       `json:"total_deleted" yaml:"total_deleted"`
	Successful      int       `json:"successful" yaml:"successful"`
	Failed          int       `json:"failed" yaml:"failed"`
	Skipped         int       `json:"skipped" yaml:"skipped"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Server is a configured panel
type Server struct {
	ID     string `json:"id" yaml:"id"`
	Remark string `json:"remark" yaml:"remark"`
	Type   string `json:"type" yaml:"type"`
	Host   string `json:"host" yaml:"host"`
}

// StatusOption is a selectable cleanup filter
type StatusOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// ListOptions contains common pagination options
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResponse is a paginated listing
type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}
