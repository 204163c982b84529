package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

const serversYAML = `
servers:
  - id: "2"
    remark: backup
    type: marzban
    host: https://b.example.com
    username: root
    password: pw
  - id: "1"
    remark: main
    type: marzneshin
    host: https://a.example.com
    username: admin
    password: secret
    size_value: 25
`

func TestLoadServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	if err := os.WriteFile(path, []byte(serversYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	repo, err := LoadServers(path)
	if err != nil {
		t.Fatalf("LoadServers() error = %v", err)
	}

	servers, _ := repo.ListServers(context.Background())
	if len(servers) != 2 || servers[0].ID != "1" {
		t.Fatalf("ListServers() = %+v", servers)
	}

	s, err := repo.GetServer(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetServer() error = %v", err)
	}
	if s.Type != panel.ServerTypeMarzneshin || s.PageSize() != 25 || s.Password != "secret" {
		t.Errorf("GetServer() = %+v", s)
	}

	// returned servers are copies
	s.Remark = "changed"
	again, _ := repo.GetServer(context.Background(), "1")
	if again.Remark != "main" {
		t.Error("GetServer() leaked internal state")
	}

	if _, err := repo.GetServer(context.Background(), "9"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("GetServer(missing) error = %v", err)
	}
}

func TestParseServers_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{"empty", "servers: []", errors.ErrCodeValidation},
		{"bad type", `servers: [{id: "1", remark: r, type: xui, host: "https://x", username: u, password: p}]`, errors.ErrCodeValidation},
		{"missing host", `servers: [{id: "1", remark: r, type: marzban, username: u, password: p}]`, errors.ErrCodeValidation},
		{"duplicate", `servers: [{id: "1", remark: r, type: marzban, host: "https://x", username: u, password: p}, {id: "1", remark: s, type: marzban, host: "https://y", username: u, password: p}]`, errors.ErrCodeConfiguration},
		{"not yaml", "servers: [", errors.ErrCodeConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseServers([]byte(tt.yaml))
			if !errors.HasCode(err, tt.code) {
				t.Errorf("ParseServers() error = %v, want code %s", err, tt.code)
			}
		})
	}
}
