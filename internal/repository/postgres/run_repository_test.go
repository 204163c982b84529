package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

func newRun(taskID, serverID string, started time.Time) *cleanup.Run {
	return &cleanup.Run{
		TaskID:          taskID,
		ServerID:        serverID,
		Intent:          cleanup.IntentCleanup,
		Trigger:         cleanup.TriggerScheduled,
		Admins:          []string{"ALL", "alice"},
		Status:          cleanup.RunStatusCompleted,
		StartedAt:       started,
		FinishedAt:      started.Add(42 * time.Second),
		TotalUsers:      10,
		TotalOperations: 4,
		TotalDeleted:    3,
		Successful:      3,
		Failed:          1,
		Skipped:         6,
	}
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRunRepository(db, "sqlite")
	ctx := context.Background()
	started := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	run := newRun("cleanup_1_1", "1", started)
	run.Error = "partial failure"
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == "" {
		t.Fatal("CreateRun() did not assign an id")
	}

	got, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.TaskID != "cleanup_1_1" || got.ServerID != "1" {
		t.Errorf("GetRun() task/server = %s/%s", got.TaskID, got.ServerID)
	}
	if len(got.Admins) != 2 || got.Admins[1] != "alice" {
		t.Errorf("Admins = %v", got.Admins)
	}
	if got.Duration() != 42*time.Second {
		t.Errorf("Duration() = %v, want 42s", got.Duration())
	}
	if got.Error != "partial failure" || got.TotalDeleted != 3 || got.Skipped != 6 {
		t.Errorf("GetRun() = %+v", got)
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := NewRunRepository(testutil.NewTestDB(t), "sqlite")
	_, err := repo.GetRun(context.Background(), "nope")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("GetRun() error = %v, want NOT_FOUND", err)
	}
}

func TestRunRepository_ListRuns(t *testing.T) {
	repo := NewRunRepository(testutil.NewTestDB(t), "sqlite")
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	for i, taskID := range []string{"t1", "t2", "t1", ""} {
		run := newRun(taskID, "1", base.Add(time.Duration(i)*time.Hour))
		if taskID == "" {
			run.Trigger = cleanup.TriggerInteractive
			run.ServerID = "2"
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    cleanup.RunFilter
		limit     int
		wantTotal int64
		wantLen   int
	}{
		{"all", cleanup.RunFilter{}, 10, 4, 4},
		{"paged", cleanup.RunFilter{}, 2, 4, 2},
		{"by task", cleanup.RunFilter{TaskID: "t1"}, 10, 2, 2},
		{"by server", cleanup.RunFilter{ServerID: "2"}, 10, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, total, err := repo.ListRuns(ctx, tt.filter, tt.limit, 0)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if total != tt.wantTotal || len(runs) != tt.wantLen {
				t.Errorf("ListRuns() = %d runs, total %d; want %d, %d", len(runs), total, tt.wantLen, tt.wantTotal)
			}
		})
	}

	runs, _, _ := repo.ListRuns(ctx, cleanup.RunFilter{}, 10, 0)
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("ListRuns() should return newest first")
	}
}

func TestRunRepository_Rebind(t *testing.T) {
	pg := NewRunRepository(nil, "postgres")
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind() = %q", got)
	}
	lite := NewRunRepository(nil, "sqlite")
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() = %q", got)
	}
}
