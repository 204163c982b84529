package panelclient

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

// marzban speaks the Marzban REST API
type marzban struct {
	session *session
}

type marzbanAdmin struct {
	Username string `json:"username"`
	IsSudo   bool   `json:"is_sudo"`
}

type marzbanUser struct {
	Username               string  `json:"username"`
	Status                 string  `json:"status"`
	Expire                 *int64  `json:"expire"`
	DataLimit              *int64  `json:"data_limit"`
	DataLimitResetStrategy string  `json:"data_limit_reset_strategy"`
	Note                   *string `json:"note"`
	OnHoldExpireDuration   *int64  `json:"on_hold_expire_duration"`
}

func (u marzbanUser) toDomain(owner string) panel.User {
	out := panel.User{
		Username:               u.Username,
		Owner:                  owner,
		ServiceIDs:             []int{},
		Status:                 panel.MarzbanStatus(u.Status),
		DataLimit:              u.DataLimit,
		DataLimitResetStrategy: u.DataLimitResetStrategy,
		Note:                   u.Note,
		UsageDuration:          u.OnHoldExpireDuration,
		Enabled:                u.Status != string(panel.MarzbanDisabled),
	}
	if u.Expire != nil && *u.Expire > 0 {
		exp := time.Unix(*u.Expire, 0).UTC()
		out.ExpireDate = &exp
	}
	return out
}

type marzbanUsers struct {
	Users []marzbanUser `json:"users"`
	Total int           `json:"total"`
}

type marzbanInbound struct {
	Tag      string `json:"tag"`
	Protocol string `json:"protocol"`
}

type marzbanNode struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Port    int     `json:"port"`
	Status  string  `json:"status"`
	Message *string `json:"message"`
}

func (m *marzban) admins(ctx context.Context, s *panel.Server) ([]panel.Admin, error) {
	var admins []marzbanAdmin
	if err := m.session.call(ctx, s, http.MethodGet, "/api/admins", nil, nil, &admins); err != nil {
		return nil, err
	}
	out := make([]panel.Admin, 0, len(admins))
	for _, a := range admins {
		out = append(out, panel.Admin{Username: a.Username, IsSudo: a.IsSudo})
	}
	return out, nil
}

// users maps the 1-based page onto Marzban's offset/limit listing
func (m *marzban) users(ctx context.Context, s *panel.Server, page, size int, owner string) ([]panel.User, error) {
	query := url.Values{
		"offset": {strconv.Itoa((page - 1) * size)},
		"limit":  {strconv.Itoa(size)},
	}
	if owner != "" {
		query.Set("admin", owner)
	}

	var resp marzbanUsers
	if err := m.session.call(ctx, s, http.MethodGet, "/api/users", query, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]panel.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, u.toDomain(owner))
	}
	return out, nil
}

func (m *marzban) modify(ctx context.Context, s *panel.Server, username string, payload panel.ModifyPayload) (bool, error) {
	return false, errors.Configuration("user modification is not supported on marzban servers")
}

func (m *marzban) remove(ctx context.Context, s *panel.Server, username string) (bool, error) {
	path := "/api/user/" + url.PathEscape(username)
	if err := m.session.call(ctx, s, http.MethodDelete, path, nil, nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// configs lists inbounds. Marzban inbounds have no numeric id, so ids are
// assigned 1..n in tag order.
func (m *marzban) configs(ctx context.Context, s *panel.Server) ([]panel.ServiceConfig, error) {
	var byProtocol map[string][]marzbanInbound
	if err := m.session.call(ctx, s, http.MethodGet, "/api/inbounds", nil, nil, &byProtocol); err != nil {
		return nil, err
	}
	var tags []string
	for _, inbounds := range byProtocol {
		for _, in := range inbounds {
			tags = append(tags, in.Tag)
		}
	}
	sort.Strings(tags)

	out := make([]panel.ServiceConfig, 0, len(tags))
	for i, tag := range tags {
		out = append(out, panel.ServiceConfig{ID: i + 1, Name: tag})
	}
	return out, nil
}

func (m *marzban) nodes(ctx context.Context, s *panel.Server) ([]panel.Node, error) {
	var nodes []marzbanNode
	if err := m.session.call(ctx, s, http.MethodGet, "/api/nodes", nil, nil, &nodes); err != nil {
		return nil, err
	}
	out := make([]panel.Node, 0, len(nodes))
	for _, n := range nodes {
		node := panel.Node{ID: n.ID, Name: n.Name, Address: n.Address, Port: n.Port, Status: n.Status}
		if n.Message != nil {
			node.Message = *n.Message
		}
		out = append(out, node)
	}
	return out, nil
}
