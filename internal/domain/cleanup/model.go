package cleanup

import (
	"fmt"
	"time"
)

// Task is a persisted recurring cleanup job
type Task struct {
	ID             string     `json:"id" yaml:"id" validate:"required,max=128"`
	ServerID       string     `json:"server_id" yaml:"server_id" validate:"required"`
	AdminUsernames []string   `json:"admin_usernames" yaml:"admin_usernames" validate:"required,min=1,dive,required"`
	StatusFilters  []string   `json:"status_filters" yaml:"status_filters" validate:"required,min=1,unique,dive,required"`
	IntervalHours  int        `json:"interval_hours" yaml:"interval_hours" validate:"gt=0,lte=8760"`
	Enabled        bool       `json:"enabled" yaml:"enabled"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	LastRun        *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	NextRun        time.Time  `json:"next_run" yaml:"next_run"`
	LastError      string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// NewTask creates an enabled task whose first run is one interval after now
func NewTask(id, serverID string, admins, filters []string, intervalHours int, now time.Time) *Task {
	if id == "" {
		id = DefaultTaskID(serverID, now)
	}
	return &Task{
		ID:             id,
		ServerID:       serverID,
		AdminUsernames: append([]string(nil), admins...),
		StatusFilters:  append([]string(nil), filters...),
		IntervalHours:  intervalHours,
		Enabled:        true,
		CreatedAt:      now,
		NextRun:        now.Add(time.Duration(intervalHours) * time.Hour),
	}
}

// DefaultTaskID returns cleanup_<server>_<unix seconds>
func DefaultTaskID(serverID string, now time.Time) string {
	return fmt.Sprintf("cleanup_%s_%d", serverID, now.Unix())
}

// Interval returns the task period
func (t *Task) Interval() time.Duration {
	return time.Duration(t.IntervalHours) * time.Hour
}

// IsDue reports whether an enabled task should fire at now
func (t *Task) IsDue(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// MarkExecuted applies post-execution bookkeeping. It runs after success
// and failure alike so a failing task is not retried every tick.
func (t *Task) MarkExecuted(now time.Time, runErr error) {
	last := now
	t.LastRun = &last
	t.NextRun = now.Add(t.Interval())
	if runErr != nil {
		t.LastError = runErr.Error()
	} else {
		t.LastError = ""
	}
}

// Clone returns a deep copy
func (t *Task) Clone() *Task {
	c := *t
	c.AdminUsernames = append([]string(nil), t.AdminUsernames...)
	c.StatusFilters = append([]string(nil), t.StatusFilters...)
	if t.LastRun != nil {
		lr := *t.LastRun
		c.LastRun = &lr
	}
	return &c
}

// Intent names the kind of bulk change a run performed
type Intent string

const (
	IntentAssignment Intent = "assignment"
	IntentCleanup    Intent = "cleanup"
)

// Trigger names what started a run
type Trigger string

const (
	TriggerInteractive Trigger = "interactive"
	TriggerScheduled   Trigger = "scheduled"
	TriggerManual      Trigger = "manual"
)

// RunStatus is the outcome of a run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one bulk run
type Run struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id,omitempty"`
	ServerID        string    `json:"server_id"`
	Intent          Intent    `json:"intent"`
	Trigger         Trigger   `json:"trigger"`
	Admins          []string  `json:"admins"`
	Status          RunStatus `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	TotalUsers      int       `json:"total_users"`
	TotalOperations int       `json:"total_operations"`
	TotalDeleted    int       `json:"total_deleted"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	Error           string    `json:"error,omitempty"`
}

// Duration returns how long the run took
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter contains run filtering options
type RunFilter struct {
	TaskID   string
	ServerID string
	Intent   Intent
	From     *time.Time
}
