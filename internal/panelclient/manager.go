package panelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
)

// adapter is one panel flavor's API
type adapter interface {
	admins(ctx context.Context, s *panel.Server) ([]panel.Admin, error)
	users(ctx context.Context, s *panel.Server, page, size int, owner string) ([]panel.User, error)
	modify(ctx context.Context, s *panel.Server, username string, payload panel.ModifyPayload) (bool, error)
	remove(ctx context.Context, s *panel.Server, username string) (bool, error)
	configs(ctx context.Context, s *panel.Server) ([]panel.ServiceConfig, error)
	nodes(ctx context.Context, s *panel.Server) ([]panel.Node, error)
}

// Manager implements panel.Client by dispatching on the server type
type Manager struct {
	adapters map[panel.ServerType]adapter
	logger   *logger.Logger
}

// NewManager creates a panel client sharing one transport and token cache
// across all servers.
func NewManager(cfg TransportConfig, clk clock.Clock, log *logger.Logger) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	sess := newSession(NewTransport(cfg, clk, log), clk)
	return &Manager{
		adapters: map[panel.ServerType]adapter{
			panel.ServerTypeMarzneshin: &marzneshin{session: sess},
			panel.ServerTypeMarzban:    &marzban{session: sess},
		},
		logger: log.Component("panel"),
	}
}

func (m *Manager) adapter(s *panel.Server) (adapter, error) {
	if s == nil {
		return nil, errors.NotFound("Server")
	}
	a, ok := m.adapters[s.Type]
	if !ok {
		return nil, errors.Configuration(fmt.Sprintf("unsupported server type %q", s.Type))
	}
	return a, nil
}

// GetAdmins lists the panel's admins
func (m *Manager) GetAdmins(ctx context.Context, server *panel.Server) ([]panel.Admin, error) {
	a, err := m.adapter(server)
	if err != nil {
		return nil, err
	}
	return a.admins(ctx, server)
}

// GetUsers lists one 1-based page of users, optionally of one owner
func (m *Manager) GetUsers(ctx context.Context, server *panel.Server, page, size int, owner string) ([]panel.User, error) {
	a, err := m.adapter(server)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = server.PageSize()
	}
	return a.users(ctx, server, page, size, owner)
}

// ModifyUser replaces a user's editable fields
func (m *Manager) ModifyUser(ctx context.Context, server *panel.Server, username string, payload panel.ModifyPayload) (bool, error) {
	a, err := m.adapter(server)
	if err != nil {
		return false, err
	}
	return a.modify(ctx, server, username, payload)
}

// RemoveUser deletes a user
func (m *Manager) RemoveUser(ctx context.Context, server *panel.Server, username string) (bool, error) {
	a, err := m.adapter(server)
	if err != nil {
		return false, err
	}
	return a.remove(ctx, server, username)
}

// GetConfigs lists services (Marzneshin) or inbounds (Marzban)
func (m *Manager) GetConfigs(ctx context.Context, server *panel.Server) ([]panel.ServiceConfig, error) {
	a, err := m.adapter(server)
	if err != nil {
		return nil, err
	}
	return a.configs(ctx, server)
}

// GetNodes lists the panel's nodes
func (m *Manager) GetNodes(ctx context.Context, server *panel.Server) ([]panel.Node, error) {
	a, err := m.adapter(server)
	if err != nil {
		return nil, err
	}
	return a.nodes(ctx, server)
}

var _ panel.Client = (*Manager)(nil)

// flexTime accepts RFC 3339 as well as the zone-less timestamps some
// panel versions emit, which are taken as UTC.
type flexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (f *flexTime) ptr() *time.Time {
	if f == nil || f.IsZero() {
		return nil
	}
	t := f.Time
	return &t
}
