package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
)

// taskRecord is the on-disk shape of a task. It accepts files written by
// earlier versions: zone-less ISO timestamps and numeric server ids.
type taskRecord struct {
	ID             string     `json:"id" yaml:"id"`
	ServerID       looseID    `json:"server_id" yaml:"server_id"`
	AdminUsernames []string   `json:"admin_usernames" yaml:"admin_usernames"`
	StatusFilters  []string   `json:"status_filters" yaml:"status_filters"`
	IntervalHours  int        `json:"interval_hours" yaml:"interval_hours"`
	Enabled        *bool      `json:"enabled" yaml:"enabled"`
	CreatedAt      timestamp  `json:"created_at" yaml:"created_at"`
	LastRun        *timestamp `json:"last_run" yaml:"last_run"`
	NextRun        timestamp  `json:"next_run" yaml:"next_run"`
	LastError      string     `json:"last_error" yaml:"last_error"`
}

func (r *taskRecord) toDomain(id string) *cleanup.Task {
	t := &cleanup.Task{
		ID:             r.ID,
		ServerID:       string(r.ServerID),
		AdminUsernames: r.AdminUsernames,
		StatusFilters:  r.StatusFilters,
		IntervalHours:  r.IntervalHours,
		Enabled:        r.Enabled == nil || *r.Enabled,
		CreatedAt:      r.CreatedAt.Time,
		NextRun:        r.NextRun.Time,
		LastError:      r.LastError,
	}
	if t.ID == "" {
		t.ID = id
	}
	if r.LastRun != nil && !r.LastRun.IsZero() {
		lr := r.LastRun.Time
		t.LastRun = &lr
	}
	// a missing next_run fires one interval after creation
	if t.NextRun.IsZero() && !t.CreatedAt.IsZero() {
		t.NextRun = t.CreatedAt.Add(t.Interval())
	}
	return t
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// timestamp decodes RFC 3339 and zone-less ISO 8601 values. Zone-less
// values are taken as UTC.
type timestamp struct {
	time.Time
}

func (t *timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.parse(s)
}

func (t *timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("timestamp must be a scalar, got kind %d", node.Kind)
	}
	if node.Tag == "!!null" {
		return nil
	}
	return t.parse(node.Value)
}

// looseID accepts a string or an integer
type looseID string

func (l *looseID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("server_id must be a string or number: %w", err)
	}
	*l = looseID(n.String())
	return nil
}

func (l *looseID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("server_id must be a scalar, got kind %d", node.Kind)
	}
	*l = looseID(node.Value)
	return nil
}
