package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

type fakeCatalog struct {
	repo *testutil.MockServerRepository
}

func (c fakeCatalog) ListServers(ctx context.Context) ([]*panel.Server, error) {
	return c.repo.ListServers(ctx)
}

func (c fakeCatalog) StatusOptions(ctx context.Context, id string) ([]bulk.StatusOption, error) {
	s, err := c.repo.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}
	return bulk.StatusOptions(s.Type)
}

func newServerRouter() chi.Router {
	catalog := fakeCatalog{repo: testutil.NewMockServerRepository(testutil.MarzneshinServer("1"), testutil.MarzbanServer("2"))}
	h := NewServerHandler(catalog, testutil.NewTestLogger())
	r := chi.NewRouter()
	r.Get("/servers", h.List)
	r.Get("/servers/{id}/status-options", h.StatusOptions)
	return r
}

func TestServerHandler_ListHidesCredentials(t *testing.T) {
	rr := httptest.NewRecorder()
	newServerRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/servers", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") || strings.Contains(rr.Body.String(), "root") {
		t.Errorf("response leaks credentials: %s", rr.Body.String())
	}
	var servers []map[string]interface{}
	decodeEnvelope(t, rr, &servers)
	if len(servers) != 2 {
		t.Errorf("servers = %d, want 2", len(servers))
	}
}

func TestServerHandler_StatusOptions(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		expectedStatus int
		expectedCount  int
	}{
		{"marzneshin", "1", http.StatusOK, 5},
		{"missing server", "7", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newServerRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/servers/"+tt.id+"/status-options", nil))
			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var opts []bulk.StatusOption
			decodeEnvelope(t, rr, &opts)
			if len(opts) != tt.expectedCount {
				t.Errorf("options = %d, want %d", len(opts), tt.expectedCount)
			}
		})
	}
}
