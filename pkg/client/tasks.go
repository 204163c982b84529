package client

import (
	"context"
	"net/http"
	"net/url"
)

// TaskService handles cleanup task calls
type TaskService struct {
	client *Client
}

// CreateTaskRequest represents a request to schedule a cleanup task
type CreateTaskRequest struct {
	ID             string   `json:"id,omitempty"`
	ServerID       string   `json:"server_id"`
	AdminUsernames []string `json:"admin_usernames"`
	StatusFilters  []string `json:"status_filters"`
	IntervalHours  int      `json:"interval_hours"`
}

type taskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// List retrieves every task
func (s *TaskService) List(ctx context.Context) ([]Task, error) {
	var out taskList
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/v1/tasks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Get retrieves a task by id
func (s *TaskService) Get(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := s.client.doRequest(ctx, http.MethodGet, taskPath(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create schedules a new task
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var t Task
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/v1/tasks", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

// Enable resumes a task
func (s *TaskService) Enable(ctx context.Context, id string) (*Task, error) {
	return s.action(ctx, id, "enable")
}

// Disable pauses a task
func (s *TaskService) Disable(ctx context.Context, id string) (*Task, error) {
	return s.action(ctx, id, "disable")
}

// Run executes a task immediately and returns its run record
func (s *TaskService) Run(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := s.client.doRequest(ctx, http.MethodPost, taskPath(id)+"/run", nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TaskService) action(ctx context.Context, id, action string) (*Task, error) {
	var t Task
	if err := s.client.doRequest(ctx, http.MethodPost, taskPath(id)+"/"+action, nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func taskPath(id string) string {
	return "/api/v1/tasks/" + url.PathEscape(id)
}
