package panelclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
)

// marzneshin speaks the Marzneshin REST API
type marzneshin struct {
	session *session
}

type marzneshinPage[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

type marzneshinAdmin struct {
	Username string `json:"username"`
	IsSudo   bool   `json:"is_sudo"`
}

type marzneshinUser struct {
	Username               string    `json:"username"`
	OwnerUsername          *string   `json:"owner_username"`
	ServiceIDs             []int     `json:"service_ids"`
	Activated              bool      `json:"activated"`
	Expired                bool      `json:"expired"`
	DataLimitReached       bool      `json:"data_limit_reached"`
	Enabled                bool      `json:"enabled"`
	IsActive               bool      `json:"is_active"`
	ExpireStrategy         string    `json:"expire_strategy"`
	ExpireDate             *flexTime `json:"expire_date"`
	UsageDuration          *int64    `json:"usage_duration"`
	DataLimit              *int64    `json:"data_limit"`
	DataLimitResetStrategy string    `json:"data_limit_reset_strategy"`
	Note                   *string   `json:"note"`
	ActivationDeadline     *flexTime `json:"activation_deadline"`
}

func (u marzneshinUser) toDomain() panel.User {
	out := panel.User{
		Username:               u.Username,
		ServiceIDs:             append([]int{}, u.ServiceIDs...),
		Activated:              u.Activated,
		Expired:                u.Expired,
		DataLimitReached:       u.DataLimitReached,
		Enabled:                u.Enabled,
		IsActive:               u.IsActive,
		ExpireStrategy:         panel.ExpireStrategy(u.ExpireStrategy),
		ExpireDate:             u.ExpireDate.ptr(),
		UsageDuration:          u.UsageDuration,
		DataLimit:              u.DataLimit,
		DataLimitResetStrategy: u.DataLimitResetStrategy,
		Note:                   u.Note,
		ActivationDeadline:     u.ActivationDeadline.ptr(),
	}
	if u.OwnerUsername != nil {
		out.Owner = *u.OwnerUsername
	}
	return out
}

type marzneshinService struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type marzneshinNode struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (m *marzneshin) admins(ctx context.Context, s *panel.Server) ([]panel.Admin, error) {
	var page marzneshinPage[marzneshinAdmin]
	query := url.Values{"page": {"1"}, "size": {"100"}}
	if err := m.session.call(ctx, s, http.MethodGet, "/api/admins", query, nil, &page); err != nil {
		return nil, err
	}
	out := make([]panel.Admin, 0, len(page.Items))
	for _, a := range page.Items {
		out = append(out, panel.Admin{Username: a.Username, IsSudo: a.IsSudo})
	}
	return out, nil
}

func (m *marzneshin) users(ctx context.Context, s *panel.Server, page, size int, owner string) ([]panel.User, error) {
	query := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	if owner != "" {
		query.Set("owner_username", owner)
	}

	var resp marzneshinPage[marzneshinUser]
	if err := m.session.call(ctx, s, http.MethodGet, "/api/users", query, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]panel.User, 0, len(resp.Items))
	for _, u := range resp.Items {
		pu := u.toDomain()
		if pu.Owner == "" {
			pu.Owner = owner
		}
		out = append(out, pu)
	}
	return out, nil
}

func (m *marzneshin) modify(ctx context.Context, s *panel.Server, username string, payload panel.ModifyPayload) (bool, error) {
	path := "/api/users/" + url.PathEscape(username)
	if err := m.session.call(ctx, s, http.MethodPut, path, nil, payload, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (m *marzneshin) remove(ctx context.Context, s *panel.Server, username string) (bool, error) {
	path := "/api/users/" + url.PathEscape(username)
	if err := m.session.call(ctx, s, http.MethodDelete, path, nil, nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (m *marzneshin) configs(ctx context.Context, s *panel.Server) ([]panel.ServiceConfig, error) {
	var page marzneshinPage[marzneshinService]
	query := url.Values{"page": {"1"}, "size": {"100"}}
	if err := m.session.call(ctx, s, http.MethodGet, "/api/services", query, nil, &page); err != nil {
		return nil, err
	}
	out := make([]panel.ServiceConfig, 0, len(page.Items))
	for _, svc := range page.Items {
		out = append(out, panel.ServiceConfig{ID: svc.ID, Name: svc.Name})
	}
	return out, nil
}

func (m *marzneshin) nodes(ctx context.Context, s *panel.Server) ([]panel.Node, error) {
	var page marzneshinPage[marzneshinNode]
	query := url.Values{"page": {"1"}, "size": {"100"}}
	if err := m.session.call(ctx, s, http.MethodGet, "/api/nodes", query, nil, &page); err != nil {
		return nil, err
	}
	out := make([]panel.Node, 0, len(page.Items))
	for _, n := range page.Items {
		out = append(out, panel.Node(n))
	}
	return out, nil
}
