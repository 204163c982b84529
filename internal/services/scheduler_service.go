package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
	"github.com/pratik-mahalle/panelbot/internal/pkg/validator"
)

// DefaultSchedulerTick is the polling interval of the task loop
const DefaultSchedulerTick = 60 * time.Second

// SchedulerService implements cleanup.Scheduler. The registry and its file
// have a single writer: every mutation holds mu. Bulk runs happen outside
// the lock.
type SchedulerService struct {
	store     cleanup.Store
	servers   panel.ServerRepository
	runner    BulkRunner
	runs      cleanup.RunRepository
	validator *validator.Validator
	clock     clock.Clock
	logger    *logger.Logger
	tick      time.Duration

	mu       sync.Mutex
	tasks    map[string]*cleanup.Task
	loaded   bool
	inFlight map[string]struct{}

	scheduler    *cron.Cron
	cancelRuns   context.CancelFunc
	isRunning    bool
	runningMutex sync.RWMutex
}

// SchedulerOption customizes a SchedulerService
type SchedulerOption func(*SchedulerService)

// WithTick sets the polling interval
func WithTick(d time.Duration) SchedulerOption {
	return func(s *SchedulerService) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock replaces the wall clock
func WithClock(c clock.Clock) SchedulerOption {
	return func(s *SchedulerService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRunRepository records every execution
func WithRunRepository(r cleanup.RunRepository) SchedulerOption {
	return func(s *SchedulerService) { s.runs = r }
}

// NewSchedulerService creates a scheduler. runner should be an
// orchestrator built with bulk.ScheduledOptions.
func NewSchedulerService(
	store cleanup.Store,
	servers panel.ServerRepository,
	runner BulkRunner,
	log *logger.Logger,
	opts ...SchedulerOption,
) *SchedulerService {
	if log == nil {
		log = logger.Nop()
	}
	s := &SchedulerService{
		store:     store,
		servers:   servers,
		runner:    runner,
		validator: validator.New(),
		clock:     clock.Real{},
		logger:    log.Component("scheduler"),
		tick:      DefaultSchedulerTick,
		tasks:     make(map[string]*cleanup.Task),
		inFlight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask validates and registers a new task
func (s *SchedulerService) AddTask(ctx context.Context, req cleanup.CreateTaskRequest) (*cleanup.Task, error) {
	if err := s.validator.Check("task", &req); err != nil {
		return nil, err
	}

	server, err := s.servers.GetServer(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	if err := bulk.ValidateStatusFilters(server.Type, req.StatusFilters); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	t := cleanup.NewTask(req.ID, req.ServerID, req.AdminUsernames, req.StatusFilters, req.IntervalHours, s.clock.Now())
	if _, exists := s.tasks[t.ID]; exists {
		return nil, errors.Conflict(fmt.Sprintf("task %s already exists", t.ID))
	}

	s.tasks[t.ID] = t
	if err := s.persist(ctx); err != nil {
		delete(s.tasks, t.ID)
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"task_id":        t.ID,
		"server_id":      t.ServerID,
		"admins":         t.AdminUsernames,
		"status_filters": t.StatusFilters,
		"interval_hours": t.IntervalHours,
		"next_run":       t.NextRun,
	}).Info("Cleanup task created")

	return t.Clone(), nil
}

// RemoveTask deletes a task
func (s *SchedulerService) RemoveTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	t, ok := s.tasks[id]
	if !ok {
		return errors.NotFound("Task")
	}

	delete(s.tasks, id)
	if err := s.persist(ctx); err != nil {
		s.tasks[id] = t
		return err
	}

	s.logger.With("task_id", id).Info("Cleanup task removed")
	return nil
}

// EnableTask enables a task
func (s *SchedulerService) EnableTask(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, true)
}

// DisableTask disables a task
func (s *SchedulerService) DisableTask(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, false)
}

func (s *SchedulerService) setEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	t, ok := s.tasks[id]
	if !ok {
		return errors.NotFound("Task")
	}

	prev := t.Enabled
	t.Enabled = enabled
	if err := s.persist(ctx); err != nil {
		t.Enabled = prev
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"task_id": id,
		"enabled": enabled,
	}).Info("Cleanup task updated")
	return nil
}

// GetTask returns a copy of a task
func (s *SchedulerService) GetTask(ctx context.Context, id string) (*cleanup.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, errors.NotFound("Task")
	}
	return t.Clone(), nil
}

// ListTasks returns copies of every task ordered by creation time
func (s *SchedulerService) ListTasks(ctx context.Context) ([]*cleanup.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// RunTask executes a task immediately with scheduled-run bookkeeping.
// Once the task has executed the run record is returned, together with the
// run error when it failed.
func (s *SchedulerService) RunTask(ctx context.Context, id string) (*cleanup.Run, error) {
	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, errors.NotFound("Task")
	}
	if _, busy := s.inFlight[id]; busy {
		s.mu.Unlock()
		return nil, errors.Conflict(fmt.Sprintf("task %s is already running", id))
	}
	s.inFlight[id] = struct{}{}
	task := t.Clone()
	s.mu.Unlock()

	return s.execute(ctx, task, cleanup.TriggerManual)
}

// RunDue executes every enabled task whose next run has passed. Each due
// task runs once per call however overdue it is.
func (s *SchedulerService) RunDue(ctx context.Context) int {
	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		s.logger.ErrorWithErr(err, "Failed to load cleanup tasks")
		return 0
	}
	now := s.clock.Now()
	var due []*cleanup.Task
	for _, t := range s.snapshot() {
		if _, busy := s.inFlight[t.ID]; busy {
			continue
		}
		if t.IsDue(now) {
			s.inFlight[t.ID] = struct{}{}
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if ctx.Err() != nil {
			s.release(t.ID)
			continue
		}
		s.execute(ctx, t, cleanup.TriggerScheduled)
	}
	return len(due)
}

// execute runs a task's cleanup and applies the bookkeeping. The caller
// has marked the task in flight.
func (s *SchedulerService) execute(ctx context.Context, t *cleanup.Task, trigger cleanup.Trigger) (*cleanup.Run, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"task_id":   t.ID,
		"server_id": t.ServerID,
		"trigger":   string(trigger),
	})
	log.Info("Executing cleanup task")

	started := s.clock.Now()
	var (
		agg    *bulk.AggregateResult
		runErr error
	)

	server, err := s.servers.GetServer(ctx, t.ServerID)
	if err != nil {
		runErr = err
	} else {
		agg, runErr = s.safeRun(ctx, server, t)
	}
	finished := s.clock.Now()

	run := newRunRecord(runSpec{
		taskID:   t.ID,
		serverID: t.ServerID,
		intent:   cleanup.IntentCleanup,
		trigger:  trigger,
		admins:   t.AdminUsernames,
	}, started, finished, agg, runErr)
	recordRun(ctx, s.runs, run, log)
	metrics.RecordSchedulerExecution(string(run.Status))

	if runErr != nil {
		log.ErrorWithErr(runErr, "Cleanup task failed")
	} else {
		log.WithFields(map[string]interface{}{
			"total_deleted": run.TotalDeleted,
			"failed":        run.Failed,
			"skipped":       run.Skipped,
			"duration":      run.Duration().String(),
		}).Info("Cleanup task completed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, t.ID)

	live, ok := s.tasks[t.ID]
	if !ok {
		// removed while running
		return run, runErr
	}
	live.MarkExecuted(finished, runErr)
	if err := s.persist(context.WithoutCancel(ctx)); err != nil {
		log.ErrorWithErr(err, "Failed to persist task after execution")
	}
	return run, runErr
}

// safeRun shields the scheduler loop from a panicking orchestrator
func (s *SchedulerService) safeRun(ctx context.Context, server *panel.Server, t *cleanup.Task) (agg *bulk.AggregateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Sprintf("cleanup run panicked: %v", r), nil)
		}
	}()
	return s.runner.Run(ctx, server, t.AdminUsernames, bulk.CleanupIntent{StatusFilters: t.StatusFilters}, nil)
}

func (s *SchedulerService) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// Start loads the registry and starts the polling loop. Runs started by
// the loop use a context derived from ctx that Shutdown cancels only when
// its deadline passes.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	s.mu.Lock()
	s.loaded = false
	err := s.ensureLoaded(ctx)
	count := len(s.tasks)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to load cleanup tasks: %w", err)
	}

	runCtx, cancelRuns := context.WithCancel(ctx)
	cl := cronLogger{logger: s.logger}
	s.scheduler = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.scheduler.AddFunc(fmt.Sprintf("@every %s", s.tick), func() {
		s.RunDue(runCtx)
	}); err != nil {
		cancelRuns()
		return fmt.Errorf("failed to schedule task loop: %w", err)
	}

	s.scheduler.Start()
	s.cancelRuns = cancelRuns
	s.isRunning = true

	s.logger.WithFields(map[string]interface{}{
		"tasks_loaded": count,
		"tick":         s.tick.String(),
	}).Info("Cleanup scheduler started")

	return nil
}

// Stop prevents further ticks and waits for an in-flight tick to finish
func (s *SchedulerService) Stop() error {
	return s.Shutdown(context.Background())
}

// Shutdown prevents further ticks and waits for an in-flight tick to
// finish. If ctx ends first, running tasks are cancelled between batches
// and Shutdown still waits for them to be recorded, then returns ctx.Err().
func (s *SchedulerService) Shutdown(ctx context.Context) error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if !s.isRunning {
		return nil
	}

	var err error
	done := s.scheduler.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached, cancelling running cleanup tasks")
		s.cancelRuns()
		<-done
		err = ctx.Err()
	}
	s.cancelRuns()
	s.isRunning = false

	s.logger.Info("Cleanup scheduler stopped")
	return err
}

// IsRunning returns whether the polling loop is active
func (s *SchedulerService) IsRunning() bool {
	s.runningMutex.RLock()
	defer s.runningMutex.RUnlock()
	return s.isRunning
}

// ensureLoaded reads the registry once. Callers hold mu.
func (s *SchedulerService) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	tasks, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.tasks = make(map[string]*cleanup.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.loaded = true
	s.updateGauge()
	return nil
}

// persist writes the whole registry. Callers hold mu.
func (s *SchedulerService) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.snapshot()); err != nil {
		return err
	}
	s.updateGauge()
	return nil
}

// snapshot returns ordered copies of the registry. Callers hold mu.
func (s *SchedulerService) snapshot() []*cleanup.Task {
	out := make([]*cleanup.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *SchedulerService) updateGauge() {
	enabled, disabled := 0, 0
	for _, t := range s.tasks {
		if t.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	metrics.SetSchedulerTasks(enabled, disabled)
}

var _ cleanup.Scheduler = (*SchedulerService)(nil)
