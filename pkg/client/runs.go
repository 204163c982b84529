package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RunService handles run history calls
type RunService struct {
	client *Client
}

// RunListOptions contains options for listing runs
type RunListOptions struct {
	ListOptions
	TaskID   string
	ServerID string
	Intent   string
	Since    *time.Time
}

// List retrieves one page of runs, newest first
func (s *RunService) List(ctx context.Context, opts *RunListOptions) (*ListResponse[Run], error) {
	query := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
		if opts.TaskID != "" {
			query.Set("task_id", opts.TaskID)
		}
		if opts.ServerID != "" {
			query.Set("server_id", opts.ServerID)
		}
		if opts.Intent != "" {
			query.Set("intent", opts.Intent)
		}
		if opts.Since != nil {
			query.Set("since", opts.Since.UTC().Format(time.RFC3339))
		}
	}

	var out ListResponse[Run]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/v1/runs", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a run by id
func (s *RunService) Get(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ServerService handles configured server calls
type ServerService struct {
	client *Client
}

// List retrieves every configured server
func (s *ServerService) List(ctx context.Context) ([]Server, error) {
	var out []Server
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/v1/servers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusOptions retrieves the cleanup filters a server supports
func (s *ServerService) StatusOptions(ctx context.Context, serverID string) ([]StatusOption, error) {
	var out []StatusOption
	path := "/api/v1/servers/" + url.PathEscape(serverID) + "/status-options"
	if err := s.client.doRequest(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
