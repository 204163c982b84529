package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

func seedRuns(t *testing.T, repo *testutil.MockRunRepository) {
	t.Helper()
	ctx := context.Background()
	runs := []*cleanup.Run{
		{TaskID: "cleanup_1", ServerID: "1", Intent: cleanup.IntentCleanup, Trigger: cleanup.TriggerScheduled, Status: cleanup.RunStatusCompleted},
		{ServerID: "1", Intent: cleanup.IntentAssignment, Trigger: cleanup.TriggerInteractive, Status: cleanup.RunStatusPartial},
		{TaskID: "cleanup_2", ServerID: "2", Intent: cleanup.IntentCleanup, Trigger: cleanup.TriggerManual, Status: cleanup.RunStatusFailed},
	}
	for _, r := range runs {
		r.StartedAt = t0
		r.FinishedAt = t0.Add(1500 * time.Millisecond)
		if err := repo.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunHandler_List(t *testing.T) {
	repo := testutil.NewMockRunRepository()
	seedRuns(t, repo)
	h := NewRunHandler(repo, testutil.NewTestLogger())

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"all runs", "", http.StatusOK, 3},
		{"by server", "?server_id=1", http.StatusOK, 2},
		{"by intent", "?intent=cleanup", http.StatusOK, 2},
		{"by task", "?task_id=cleanup_2", http.StatusOK, 1},
		{"paginated", "?page=2&page_size=2", http.StatusOK, 1},
		{"bad intent", "?intent=purge", http.StatusBadRequest, 0},
		{"bad since", "?since=yesterday", http.StatusBadRequest, 0},
		{"since", "?since=2025-01-01T00:00:00Z", http.StatusOK, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/runs"+tt.query, nil)
			rr := httptest.NewRecorder()
			h.List(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var page struct {
				Data       []map[string]interface{} `json:"data"`
				TotalItems int64                    `json:"total_items"`
			}
			decodeEnvelope(t, rr, &page)
			if len(page.Data) != tt.expectedCount {
				t.Errorf("runs = %d, want %d", len(page.Data), tt.expectedCount)
			}
		})
	}
}

func TestRunHandler_Get(t *testing.T) {
	repo := testutil.NewMockRunRepository()
	seedRuns(t, repo)
	h := NewRunHandler(repo, testutil.NewTestLogger())
	r := chi.NewRouter()
	r.Get("/runs/{id}", h.Get)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var run map[string]interface{}
	decodeEnvelope(t, rr, &run)
	if run["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", run["duration_ms"])
	}
	if run["status"] != "completed" {
		t.Errorf("status = %v", run["status"])
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/run-9", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rr.Code)
	}
}
