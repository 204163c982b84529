package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pratik-mahalle/panelbot/internal/api/handlers"
	"github.com/pratik-mahalle/panelbot/internal/api/middleware"
	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/services"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

func newTestRouter(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	log := testutil.NewTestLogger()
	client := testutil.NewMockPanelClient()
	servers := testutil.NewMockServerRepository(testutil.MarzneshinServer("1"))
	runs := testutil.NewMockRunRepository()
	clk := clock.NewFake(clock.Real{}.Now())

	scheduled := bulk.NewOrchestrator(client, bulk.ScheduledOptions(), clk, log)
	interactive := bulk.NewOrchestrator(client, bulk.InteractiveCleanupOptions(), clk, log)
	scheduler := services.NewSchedulerService(testutil.NewMockTaskStore(), servers, scheduled, log,
		services.WithRunRepository(runs))
	bulkSvc := services.NewBulkService(servers, client, interactive, interactive, runs, clk, log)

	h := &Handlers{
		Health: handlers.NewHealthHandler(testutil.NewTestDB(t), nil, log),
		Task:   handlers.NewTaskHandler(scheduler, log),
		Run:    handlers.NewRunHandler(runs, log),
		Server: handlers.NewServerHandler(bulkSvc, log),
	}
	return New(config.ServerConfig{APIKey: apiKey}, log, middleware.NewRateLimiter(600, 50), h)
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t, "key")

	tests := []struct {
		name           string
		method         string
		path           string
		key            string
		expectedStatus int
	}{
		{"healthz is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readyz is public", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"tasks require key", http.MethodGet, "/api/v1/tasks", "", http.StatusUnauthorized},
		{"tasks with key", http.MethodGet, "/api/v1/tasks", "key", http.StatusOK},
		{"runs with key", http.MethodGet, "/api/v1/runs", "key", http.StatusOK},
		{"servers with key", http.MethodGet, "/api/v1/servers", "key", http.StatusOK},
		{"status options", http.MethodGet, "/api/v1/servers/1/status-options", "key", http.StatusOK},
		{"unknown task", http.MethodGet, "/api/v1/tasks/nope", "key", http.StatusNotFound},
		{"method not allowed", http.MethodPut, "/api/v1/tasks/nope", "key", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(middleware.APIKeyHeader, tt.key)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.expectedStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rr.Code, tt.expectedStatus)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestRouter_CreateTask(t *testing.T) {
	r := newTestRouter(t, "")
	body := `{"server_id":"1","admin_usernames":["ALL"],"status_filters":["expired"],"interval_hours":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"interval_hours":2`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}
