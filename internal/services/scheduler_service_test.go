package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	apperrors "github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

var t0 = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

type schedulerFixture struct {
	client  *testutil.MockPanelClient
	store   *testutil.MockTaskStore
	runs    *testutil.MockRunRepository
	clock   *clock.Fake
	service *SchedulerService
}

func newSchedulerFixture(tasks ...*cleanup.Task) *schedulerFixture {
	client := testutil.NewMockPanelClient()
	// the orchestrator sleeps on its own clock so scheduler time stays put
	orch := bulk.NewOrchestrator(client, bulk.ScheduledOptions(), clock.NewFake(t0), testutil.NewTestLogger())
	f := &schedulerFixture{
		client: client,
		store:  testutil.NewMockTaskStore(tasks...),
		runs:   testutil.NewMockRunRepository(),
		clock:  clock.NewFake(t0),
	}
	servers := testutil.NewMockServerRepository(testutil.MarzneshinServer("1"), testutil.MarzbanServer("2"))
	f.service = NewSchedulerService(f.store, servers, orch, testutil.NewTestLogger(),
		WithClock(f.clock), WithRunRepository(f.runs))
	return f
}

func expiredUser(name string) panel.User {
	return panel.User{Username: name, Activated: true, Enabled: true, IsActive: false, Expired: true}
}

func activeUser(name string) panel.User {
	return panel.User{Username: name, Activated: true, Enabled: true, IsActive: true}
}

func hourlyRequest() cleanup.CreateTaskRequest {
	return cleanup.CreateTaskRequest{
		ServerID:       "1",
		AdminUsernames: []string{bulk.AllAdmins},
		StatusFilters:  []string{bulk.StatusExpired},
		IntervalHours:  1,
	}
}

func TestScheduler_NextRunIsAnchoredToExecutionTime(t *testing.T) {
	f := newSchedulerFixture()
	f.client.AddUsers("a", expiredUser("old"), activeUser("fresh"))
	ctx := context.Background()

	task, err := f.service.AddTask(ctx, hourlyRequest())
	require.NoError(t, err)
	assert.Equal(t, "cleanup_1_1735725600", task.ID)
	assert.Equal(t, t0.Add(time.Hour), task.NextRun)
	assert.Nil(t, task.LastRun)

	// not yet due
	f.clock.Advance(30 * time.Minute)
	assert.Equal(t, 0, f.service.RunDue(ctx))

	t2 := t0.Add(3*time.Hour + 30*time.Minute)
	f.clock.Set(t2)
	assert.Equal(t, 1, f.service.RunDue(ctx), "overdue task fires exactly once")

	got, err := f.service.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, t2, *got.LastRun)
	assert.Equal(t, t2.Add(time.Hour), got.NextRun)
	assert.Empty(t, got.LastError)

	_, ok := f.client.User("old")
	assert.False(t, ok, "expired user deleted")
	_, ok = f.client.User("fresh")
	assert.True(t, ok)

	assert.Equal(t, 0, f.service.RunDue(ctx), "no catch-up runs")

	stored := f.store.Stored(task.ID)
	require.NotNil(t, stored)
	assert.Equal(t, t2.Add(time.Hour), stored.NextRun, "execution is persisted")

	require.Equal(t, 1, f.runs.Count())
	run := f.runs.Runs[0]
	assert.Equal(t, cleanup.TriggerScheduled, run.Trigger)
	assert.Equal(t, cleanup.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.TotalDeleted)
	assert.Equal(t, 1, run.Skipped)
}

func TestScheduler_FailureStillAdvancesNextRun(t *testing.T) {
	orphan := cleanup.NewTask("orphan", "9", []string{"ALL"}, []string{"expired"}, 2, t0.Add(-5*time.Hour))
	f := newSchedulerFixture(orphan)
	ctx := context.Background()

	assert.Equal(t, 1, f.service.RunDue(ctx))

	got, err := f.service.GetTask(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Hour), got.NextRun)
	assert.NotEmpty(t, got.LastError)

	require.Equal(t, 1, f.runs.Count())
	assert.Equal(t, cleanup.RunStatusFailed, f.runs.Runs[0].Status)

	assert.Equal(t, 0, f.service.RunDue(ctx), "failed task is not retried every tick")
}

func TestScheduler_PaginationFailureIsPartial(t *testing.T) {
	f := newSchedulerFixture()
	f.client.AddUsers("a", expiredUser("x"))
	f.client.FailPage("b", 1, errors.New("boom"))
	ctx := context.Background()

	req := hourlyRequest()
	req.AdminUsernames = []string{"b", "a"}
	task, err := f.service.AddTask(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.service.RunDue(ctx)

	got, _ := f.service.GetTask(ctx, task.ID)
	assert.Contains(t, got.LastError, "boom")
	assert.Equal(t, t0.Add(2*time.Hour), got.NextRun)
	assert.Equal(t, cleanup.RunStatusPartial, f.runs.Runs[0].Status)
	assert.Equal(t, 1, f.runs.Runs[0].TotalDeleted)
}

func TestScheduler_DisabledTasksDoNotRun(t *testing.T) {
	f := newSchedulerFixture()
	f.client.AddUsers("a", expiredUser("x"))
	ctx := context.Background()

	task, err := f.service.AddTask(ctx, hourlyRequest())
	require.NoError(t, err)
	require.NoError(t, f.service.DisableTask(ctx, task.ID))
	assert.False(t, f.store.Stored(task.ID).Enabled)

	f.clock.Advance(5 * time.Hour)
	assert.Equal(t, 0, f.service.RunDue(ctx))

	require.NoError(t, f.service.EnableTask(ctx, task.ID))
	assert.Equal(t, 1, f.service.RunDue(ctx))
}

func TestScheduler_AddTaskValidation(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*cleanup.CreateTaskRequest)
		code   string
	}{
		{"zero interval", func(r *cleanup.CreateTaskRequest) { r.IntervalHours = 0 }, apperrors.ErrCodeValidation},
		{"no admins", func(r *cleanup.CreateTaskRequest) { r.AdminUsernames = nil }, apperrors.ErrCodeValidation},
		{"no filters", func(r *cleanup.CreateTaskRequest) { r.StatusFilters = nil }, apperrors.ErrCodeValidation},
		{"unknown server", func(r *cleanup.CreateTaskRequest) { r.ServerID = "404" }, apperrors.ErrCodeNotFound},
		{"filter not on marzban", func(r *cleanup.CreateTaskRequest) {
			r.ServerID = "2"
			r.StatusFilters = []string{bulk.StatusInactive}
		}, apperrors.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := hourlyRequest()
			tt.mutate(&req)
			_, err := f.service.AddTask(ctx, req)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	tasks, err := f.service.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, f.store.Saves)
}

func TestScheduler_DuplicateAndRemove(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	req := hourlyRequest()
	req.ID = "nightly"
	_, err := f.service.AddTask(ctx, req)
	require.NoError(t, err)

	_, err = f.service.AddTask(ctx, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))

	require.NoError(t, f.service.RemoveTask(ctx, "nightly"))
	assert.Nil(t, f.store.Stored("nightly"))

	assert.True(t, apperrors.HasCode(f.service.RemoveTask(ctx, "nightly"), apperrors.ErrCodeNotFound))
	assert.True(t, apperrors.HasCode(f.service.EnableTask(ctx, "nightly"), apperrors.ErrCodeNotFound))
	_, err = f.service.RunTask(ctx, "nightly")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestScheduler_SaveFailureRollsBack(t *testing.T) {
	f := newSchedulerFixture()
	f.store.SaveError = errors.New("disk full")
	ctx := context.Background()

	_, err := f.service.AddTask(ctx, hourlyRequest())
	require.Error(t, err)

	tasks, _ := f.service.ListTasks(ctx)
	assert.Empty(t, tasks)
}

func TestScheduler_RunTaskNow(t *testing.T) {
	f := newSchedulerFixture()
	f.client.AddUsers("a", expiredUser("x"), expiredUser("y"))
	ctx := context.Background()

	task, err := f.service.AddTask(ctx, hourlyRequest())
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	run, err := f.service.RunTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, cleanup.TriggerManual, run.Trigger)
	assert.Equal(t, 2, run.TotalDeleted)

	got, _ := f.service.GetTask(ctx, task.ID)
	assert.Equal(t, t0.Add(10*time.Minute+time.Hour), got.NextRun)
}

func TestScheduler_LoadsRegistryOnStart(t *testing.T) {
	overdue := cleanup.NewTask("overdue", "1", []string{"ALL"}, []string{"expired"}, 1, t0.Add(-48*time.Hour))
	f := newSchedulerFixture(overdue)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.service.Start(ctx))
	assert.True(t, f.service.IsRunning())
	assert.Error(t, f.service.Start(ctx), "second start is rejected")

	tasks, err := f.service.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, f.service.Stop())
	assert.False(t, f.service.IsRunning())
	require.NoError(t, f.service.Stop(), "stop is idempotent")

	assert.Equal(t, 1, f.service.RunDue(ctx), "overdue task fires once after restart")
	assert.Equal(t, 0, f.service.RunDue(ctx))
}

func TestScheduler_StartFailsWhenStoreUnreadable(t *testing.T) {
	f := newSchedulerFixture()
	f.store.LoadError = errors.New("permission denied")

	assert.Error(t, f.service.Start(context.Background()))
	assert.False(t, f.service.IsRunning())
}

func TestNewRunRecord(t *testing.T) {
	spec := runSpec{serverID: "1", intent: cleanup.IntentCleanup, trigger: cleanup.TriggerInteractive, admins: []string{"a"}}
	agg := &bulk.AggregateResult{Counters: bulk.Counters{TotalOperations: 3, Successful: 2, Failed: 1}, Errors: []string{"u1: boom"}}

	tests := []struct {
		name   string
		agg    *bulk.AggregateResult
		err    error
		status cleanup.RunStatus
	}{
		{"clean", &bulk.AggregateResult{}, nil, cleanup.RunStatusCompleted},
		{"per-user failures", agg, nil, cleanup.RunStatusPartial},
		{"listing failure", &bulk.AggregateResult{}, errors.New("page"), cleanup.RunStatusPartial},
		{"rejected", nil, errors.New("no server"), cleanup.RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newRunRecord(spec, t0, t0.Add(time.Second), tt.agg, tt.err)
			assert.Equal(t, tt.status, run.Status)
			assert.Equal(t, time.Second, run.Duration())
		})
	}

	run := newRunRecord(spec, t0, t0, agg, nil)
	assert.Equal(t, "u1: boom", run.Error)
	assert.Equal(t, 2, run.Successful)
}

func TestScheduler_RunTaskReportsRunError(t *testing.T) {
	orphan := cleanup.NewTask("orphan", "9", []string{"ALL"}, []string{"expired"}, 1, t0)
	f := newSchedulerFixture(orphan)
	ctx := context.Background()

	run, err := f.service.RunTask(ctx, "orphan")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound), "missing server surfaces as not found: %v", err)
	require.NotNil(t, run, "the run record is returned alongside the error")
	assert.Equal(t, cleanup.RunStatusFailed, run.Status)
	assert.Equal(t, 1, f.runs.Count())

	got, _ := f.service.GetTask(ctx, "orphan")
	assert.Equal(t, t0.Add(time.Hour), got.NextRun)
	assert.NotEmpty(t, got.LastError)
}

func TestScheduler_ConcurrentWritersKeepRegistryConsistent(t *testing.T) {
	overdue := cleanup.NewTask("overdue", "1", []string{"ALL"}, []string{"expired"}, 1, t0.Add(-2*time.Hour))
	f := newSchedulerFixture(overdue)
	f.client.AddUsers("a", expiredUser("x"))
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			req := hourlyRequest()
			req.ID = fmt.Sprintf("task_%02d", i)
			if _, err := f.service.AddTask(ctx, req); err != nil {
				errs <- err
				return
			}
			if err := f.service.DisableTask(ctx, req.ID); err != nil {
				errs <- err
				return
			}
			if err := f.service.EnableTask(ctx, req.ID); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			f.service.RunDue(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("writer failed: %v", err)
	}

	tasks, err := f.service.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, writers+1)

	assert.Equal(t, writers+1, f.store.Count(), "every task reaches the store")
	for i := 0; i < writers; i++ {
		stored := f.store.Stored(fmt.Sprintf("task_%02d", i))
		if assert.NotNil(t, stored) {
			assert.True(t, stored.Enabled)
		}
	}

	// the overdue task fires once however many ticks overlap
	assert.Equal(t, 1, f.runs.Count())
	assert.Equal(t, t0.Add(time.Hour), f.store.Stored("overdue").NextRun)
}

// blockingRunner holds a run open until released or cancelled
type blockingRunner struct {
	once      sync.Once
	started   chan struct{}
	release   chan struct{}
	cancelled atomic.Bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context, server *panel.Server, admins []string, intent bulk.Intent, sink bulk.ProgressSink) (*bulk.AggregateResult, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &bulk.AggregateResult{}, nil
	case <-ctx.Done():
		b.cancelled.Store(true)
		return &bulk.AggregateResult{}, ctx.Err()
	}
}

func startBlockedScheduler(t *testing.T) (*SchedulerService, *blockingRunner, *testutil.MockRunRepository) {
	t.Helper()
	overdue := cleanup.NewTask("overdue", "1", []string{"ALL"}, []string{"expired"}, 1, t0.Add(-2*time.Hour))
	runner := newBlockingRunner()
	runs := testutil.NewMockRunRepository()
	s := NewSchedulerService(testutil.NewMockTaskStore(overdue),
		testutil.NewMockServerRepository(testutil.MarzneshinServer("1")),
		runner, testutil.NewTestLogger(),
		WithClock(clock.NewFake(t0)), WithRunRepository(runs), WithTick(time.Second))

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run never started")
	}
	return s, runner, runs
}

func TestScheduler_ShutdownLetsInFlightTickFinish(t *testing.T) {
	s, runner, runs := startBlockedScheduler(t)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done <- s.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("Shutdown() returned %v while the run was in flight", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown() did not return after the run finished")
	}
	assert.False(t, runner.cancelled.Load(), "the run must not be cancelled before the deadline")
	assert.False(t, s.IsRunning())
	assert.Equal(t, 1, runs.Count())
}

func TestScheduler_ShutdownCancelsRunsPastDeadline(t *testing.T) {
	s, runner, runs := startBlockedScheduler(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Shutdown(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, runner.cancelled.Load())
	assert.False(t, s.IsRunning())
	assert.Equal(t, 1, runs.Count(), "a cancelled run is still recorded")
}
