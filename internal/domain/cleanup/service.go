package cleanup

import "context"

// CreateTaskRequest carries the fields a caller supplies for a new task
type CreateTaskRequest struct {
	ID             string   `json:"id,omitempty"`
	ServerID       string   `json:"server_id" validate:"required"`
	AdminUsernames []string `json:"admin_usernames" validate:"required,min=1,dive,required"`
	StatusFilters  []string `json:"status_filters" validate:"required,min=1,unique,dive,required"`
	IntervalHours  int      `json:"interval_hours" validate:"gt=0,lte=8760"`
}

// Scheduler defines the cleanup scheduler interface
type Scheduler interface {
	// Task management
	AddTask(ctx context.Context, req CreateTaskRequest) (*Task, error)
	RemoveTask(ctx context.Context, id string) error
	EnableTask(ctx context.Context, id string) error
	DisableTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context) ([]*Task, error)

	// RunTask executes a task now with the same bookkeeping as a scheduled
	// firing. A non-nil Run means the task executed; err then carries the
	// run failure, if any.
	RunTask(ctx context.Context, id string) (*Run, error)

	// Scheduler management
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
