package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

// PanelCall records one mutating call made against MockPanelClient
type PanelCall struct {
	Method   string
	Username string
	Payload  panel.ModifyPayload
}

// MockPanelClient is an in-memory panel.Client. It is safe for concurrent use.
type MockPanelClient struct {
	mu sync.Mutex

	Admins  []panel.Admin
	Users   []panel.User
	Configs []panel.ServiceConfig
	Nodes   map[string][]panel.Node

	// FailUsers makes mutations on the named users return the error
	FailUsers map[string]error
	// RejectUsers makes mutations on the named users return false
	RejectUsers map[string]bool
	// PanicUsers makes mutations on the named users panic
	PanicUsers map[string]bool
	// PageErrors fails GetUsers for owner and page
	PageErrors map[string]map[int]error
	AdminsError error
	NodesError  map[string]error

	// CallDelay is slept inside every mutation
	CallDelay time.Duration

	Calls       []PanelCall
	PageCalls   []string
	inFlight    int
	MaxInFlight int
}

// NewMockPanelClient creates an empty mock client
func NewMockPanelClient() *MockPanelClient {
	return &MockPanelClient{
		Nodes:       make(map[string][]panel.Node),
		FailUsers:   make(map[string]error),
		RejectUsers: make(map[string]bool),
		PanicUsers:  make(map[string]bool),
		PageErrors:  make(map[string]map[int]error),
		NodesError:  make(map[string]error),
	}
}

// AddUsers appends users owned by owner
func (m *MockPanelClient) AddUsers(owner string, users ...panel.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		u.Owner = owner
		m.Users = append(m.Users, u)
	}
}

// FailPage makes GetUsers fail for owner on page
func (m *MockPanelClient) FailPage(owner string, page int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PageErrors[owner] == nil {
		m.PageErrors[owner] = make(map[int]error)
	}
	m.PageErrors[owner][page] = err
}

// User returns the stored user
func (m *MockPanelClient) User(username string) (panel.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == username {
			return u.Clone(), true
		}
	}
	return panel.User{}, false
}

// CallsFor returns the recorded mutations of method
func (m *MockPanelClient) CallsFor(method string) []PanelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PanelCall
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockPanelClient) GetAdmins(ctx context.Context, server *panel.Server) ([]panel.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AdminsError != nil {
		return nil, m.AdminsError
	}
	return append([]panel.Admin(nil), m.Admins...), nil
}

func (m *MockPanelClient) GetUsers(ctx context.Context, server *panel.Server, page, size int, owner string) ([]panel.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PageCalls = append(m.PageCalls, fmt.Sprintf("%s:%d", owner, page))
	if err := m.PageErrors[owner][page]; err != nil {
		return nil, err
	}

	var owned []panel.User
	for _, u := range m.Users {
		if owner == "" || u.Owner == owner {
			owned = append(owned, u.Clone())
		}
	}
	start := (page - 1) * size
	if start >= len(owned) {
		return nil, nil
	}
	end := start + size
	if end > len(owned) {
		end = len(owned)
	}
	return owned[start:end], nil
}

func (m *MockPanelClient) ModifyUser(ctx context.Context, server *panel.Server, username string, payload panel.ModifyPayload) (bool, error) {
	ok, err := m.mutate("modify", username, payload)
	if !ok || err != nil {
		return ok, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].Username == username {
			if ids, has := payload["service_ids"].([]int); has {
				m.Users[i].ServiceIDs = append([]int(nil), ids...)
			}
		}
	}
	return true, nil
}

func (m *MockPanelClient) RemoveUser(ctx context.Context, server *panel.Server, username string) (bool, error) {
	ok, err := m.mutate("remove", username, nil)
	if !ok || err != nil {
		return ok, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Users[:0]
	for _, u := range m.Users {
		if u.Username != username {
			kept = append(kept, u)
		}
	}
	m.Users = kept
	return true, nil
}

func (m *MockPanelClient) mutate(method, username string, payload panel.ModifyPayload) (bool, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, PanelCall{Method: method, Username: username, Payload: payload})
	m.inFlight++
	if m.inFlight > m.MaxInFlight {
		m.MaxInFlight = m.inFlight
	}
	delay := m.CallDelay
	failErr := m.FailUsers[username]
	reject := m.RejectUsers[username]
	panics := m.PanicUsers[username]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panics {
		panic("mock panel exploded on " + username)
	}
	if failErr != nil {
		return false, failErr
	}
	if reject {
		return false, nil
	}
	return true, nil
}

func (m *MockPanelClient) GetConfigs(ctx context.Context, server *panel.Server) ([]panel.ServiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]panel.ServiceConfig(nil), m.Configs...), nil
}

func (m *MockPanelClient) GetNodes(ctx context.Context, server *panel.Server) ([]panel.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.NodesError[server.ID]; err != nil {
		return nil, err
	}
	return append([]panel.Node(nil), m.Nodes[server.ID]...), nil
}

// SetNodes replaces the nodes reported for a server
func (m *MockPanelClient) SetNodes(serverID string, nodes ...panel.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nodes[serverID] = nodes
}

// MockServerRepository is an in-memory panel.ServerRepository
type MockServerRepository struct {
	Servers  map[string]*panel.Server
	GetError error
}

// NewMockServerRepository creates a repository holding servers
func NewMockServerRepository(servers ...*panel.Server) *MockServerRepository {
	m := &MockServerRepository{Servers: make(map[string]*panel.Server)}
	for _, s := range servers {
		m.Servers[s.ID] = s
	}
	return m
}

func (m *MockServerRepository) GetServer(ctx context.Context, id string) (*panel.Server, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	s, ok := m.Servers[id]
	if !ok {
		return nil, errors.NotFound("Server")
	}
	return s, nil
}

func (m *MockServerRepository) ListServers(ctx context.Context) ([]*panel.Server, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	out := make([]*panel.Server, 0, len(m.Servers))
	for _, s := range m.Servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockTaskStore is an in-memory cleanup.Store
type MockTaskStore struct {
	mu        sync.Mutex
	Tasks     []*cleanup.Task
	Saves     int
	LoadError error
	SaveError error
}

// NewMockTaskStore creates a store preloaded with tasks
func NewMockTaskStore(tasks ...*cleanup.Task) *MockTaskStore {
	return &MockTaskStore{Tasks: tasks}
}

func (m *MockTaskStore) Load(ctx context.Context) ([]*cleanup.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	out := make([]*cleanup.Task, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MockTaskStore) Save(ctx context.Context, tasks []*cleanup.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Saves++
	m.Tasks = make([]*cleanup.Task, 0, len(tasks))
	for _, t := range tasks {
		m.Tasks = append(m.Tasks, t.Clone())
	}
	return nil
}

// Count returns the number of saved tasks
func (m *MockTaskStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Tasks)
}

// Stored returns the last saved copy of a task
func (m *MockTaskStore) Stored(id string) *cleanup.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Tasks {
		if t.ID == id {
			return t.Clone()
		}
	}
	return nil
}

// MockRunRepository is an in-memory cleanup.RunRepository
type MockRunRepository struct {
	mu          sync.Mutex
	Runs        []*cleanup.Run
	CreateError error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{}
}

func (m *MockRunRepository) CreateRun(ctx context.Context, run *cleanup.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(m.Runs)+1)
	}
	c := *run
	m.Runs = append(m.Runs, &c)
	return nil
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*cleanup.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Runs {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, errors.NotFound("Run")
}

func (m *MockRunRepository) ListRuns(ctx context.Context, filter cleanup.RunFilter, limit, offset int) ([]*cleanup.Run, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*cleanup.Run
	for _, r := range m.Runs {
		if filter.TaskID != "" && r.TaskID != filter.TaskID {
			continue
		}
		if filter.ServerID != "" && r.ServerID != filter.ServerID {
			continue
		}
		if filter.Intent != "" && r.Intent != filter.Intent {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []*cleanup.Run{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// Count returns the number of stored runs
func (m *MockRunRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Runs)
}
