package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/panelbot/internal/api/dto"
	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// ServerCatalog lists configured panels and their cleanup filters
type ServerCatalog interface {
	ListServers(ctx context.Context) ([]*panel.Server, error)
	StatusOptions(ctx context.Context, serverID string) ([]bulk.StatusOption, error)
}

// ServerHandler handles server requests
type ServerHandler struct {
	catalog ServerCatalog
	logger  *logger.Logger
}

// NewServerHandler creates a new server handler
func NewServerHandler(catalog ServerCatalog, log *logger.Logger) *ServerHandler {
	return &ServerHandler{catalog: catalog, logger: log}
}

// List handles GET /api/v1/servers
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.catalog.ListServers(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to list servers")
		return
	}
	out := make([]dto.ServerResponse, 0, len(servers))
	for _, s := range servers {
		out = append(out, dto.ServerResponse{ID: s.ID, Remark: s.Remark, Type: string(s.Type), Host: s.Host})
	}
	utils.WriteSuccess(w, http.StatusOK, out)
}

// StatusOptions handles GET /api/v1/servers/{id}/status-options
func (h *ServerHandler) StatusOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.catalog.StatusOptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to list status options")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, opts)
}
