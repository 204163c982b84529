package cleanup

import "context"

// Store persists the whole task registry
type Store interface {
	// Load returns every stored task. A missing backing file is an empty registry.
	Load(ctx context.Context) ([]*Task, error)
	// Save atomically replaces the stored registry
	Save(ctx context.Context, tasks []*Task) error
}

// RunRepository stores run history
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter, limit, offset int) ([]*Run, int64, error)
}
