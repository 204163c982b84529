package file

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/validator"
)

type serversDocument struct {
	Servers []*panel.Server `yaml:"servers" validate:"required,min=1,dive"`
}

// ServerRepository serves panel servers read once from a YAML file:
//
//	servers:
//	  - id: "1"
//	    remark: main
//	    type: marzneshin
//	    host: https://panel.example.com
//	    username: admin
//	    password: secret
type ServerRepository struct {
	servers map[string]*panel.Server
	order   []string
}

// LoadServers parses and validates the servers file
func LoadServers(path string) (*ServerRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("Failed to read servers file %s", path), err)
	}
	return ParseServers(data)
}

// ParseServers builds a repository from YAML content
func ParseServers(data []byte) (*ServerRepository, error) {
	var doc serversDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "Failed to parse servers file", http.StatusUnprocessableEntity)
	}
	if err := validator.New().Check("servers file", &doc); err != nil {
		return nil, err
	}

	repo := &ServerRepository{servers: make(map[string]*panel.Server, len(doc.Servers))}
	for _, s := range doc.Servers {
		if _, dup := repo.servers[s.ID]; dup {
			return nil, errors.Configuration(fmt.Sprintf("duplicate server id %q", s.ID))
		}
		repo.servers[s.ID] = s
		repo.order = append(repo.order, s.ID)
	}
	sort.Strings(repo.order)
	return repo, nil
}

// GetServer returns a copy of the server with the given id
func (r *ServerRepository) GetServer(ctx context.Context, id string) (*panel.Server, error) {
	s, ok := r.servers[id]
	if !ok {
		return nil, errors.NotFound("Server")
	}
	cp := *s
	return &cp, nil
}

// ListServers returns every server ordered by id
func (r *ServerRepository) ListServers(ctx context.Context) ([]*panel.Server, error) {
	out := make([]*panel.Server, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.servers[id]
		out = append(out, &cp)
	}
	return out, nil
}
