package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

type probe bool

func (p probe) IsRunning() bool { return bool(p) }

func TestHealthHandler(t *testing.T) {
	db := testutil.NewTestDB(t)
	log := testutil.NewTestLogger()

	tests := []struct {
		name           string
		handler        *HealthHandler
		expectedStatus int
	}{
		{"ready", NewHealthHandler(db, probe(true), log), http.StatusOK},
		{"scheduler stopped", NewHealthHandler(db, probe(false), log), http.StatusServiceUnavailable},
		{"no dependencies", NewHealthHandler(nil, nil, log), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tt.expectedStatus {
				t.Errorf("Readyz status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}

	rr := httptest.NewRecorder()
	NewHealthHandler(nil, nil, log).Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Healthz status = %d", rr.Code)
	}
}

func TestHealthHandler_ClosedDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	db.Close()

	rr := httptest.NewRecorder()
	NewHealthHandler(db, nil, testutil.NewTestLogger()).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
