package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// NodeKey identifies a node across servers
type NodeKey struct {
	Server  string
	Address string
}

// Transition is the change observed for a node between two polls
type Transition int

const (
	NoChange Transition = iota
	// BecameFailing covers healthy→failing and a node first seen failing
	BecameFailing
	Recovered
)

func (t Transition) String() string {
	switch t {
	case BecameFailing:
		return "failing"
	case Recovered:
		return "recovered"
	default:
		return "unchanged"
	}
}

// NodeStates remembers whether each node was failing at the last poll
type NodeStates struct {
	mu     sync.RWMutex
	states map[NodeKey]bool
}

// NewNodeStates creates an empty registry
func NewNodeStates() *NodeStates {
	return &NodeStates{states: make(map[NodeKey]bool)}
}

// Get returns the last known state
func (s *NodeStates) Get(key NodeKey) (failing, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	failing, known = s.states[key]
	return failing, known
}

// Observe records the current state and reports the transition
func (s *NodeStates) Observe(key NodeKey, failing bool) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.states[key]
	s.states[key] = failing

	switch {
	case failing && (!known || !prev):
		return BecameFailing
	case !failing && known && prev:
		return Recovered
	default:
		return NoChange
	}
}

// Len returns the number of tracked nodes
func (s *NodeStates) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// NodeMonitor periodically polls every server's nodes
type NodeMonitor struct {
	servers  panel.ServerRepository
	client   panel.Client
	states   *NodeStates
	interval time.Duration
	logger   *logger.Logger
}

// NewNodeMonitor creates a new node monitor worker
func NewNodeMonitor(
	servers panel.ServerRepository,
	client panel.Client,
	states *NodeStates,
	interval time.Duration,
	log *logger.Logger,
) *NodeMonitor {
	if states == nil {
		states = NewNodeStates()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NodeMonitor{
		servers:  servers,
		client:   client,
		states:   states,
		interval: interval,
		logger:   log.Component("node_monitor"),
	}
}

// States exposes the node registry
func (m *NodeMonitor) States() *NodeStates { return m.states }

// Start polls until ctx is cancelled
func (m *NodeMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting node monitor worker")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run initial check
	m.CheckAll(ctx)

	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-ctx.Done():
			m.logger.Info("Node monitor worker stopped")
			return
		}
	}
}

// CheckAll polls every configured server once
func (m *NodeMonitor) CheckAll(ctx context.Context) {
	servers, err := m.servers.ListServers(ctx)
	if err != nil {
		m.logger.ErrorWithErr(err, "Failed to list servers for node check")
		return
	}

	for _, server := range servers {
		if ctx.Err() != nil {
			return
		}
		if err := m.checkServer(ctx, server); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"server": server.Remark,
			}).ErrorWithErr(err, "Failed to list nodes")
		}
	}
}

func (m *NodeMonitor) checkServer(ctx context.Context, server *panel.Server) error {
	nodes, err := m.client.GetNodes(ctx, server)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		healthy := node.Healthy()
		key := NodeKey{Server: server.Remark, Address: node.Address}
		metrics.SetNodeHealth(server.Remark, node.Address, healthy)

		log := m.logger.WithFields(map[string]interface{}{
			"server":  server.Remark,
			"node":    node.Name,
			"address": node.Address,
			"status":  node.Status,
		})
		switch m.states.Observe(key, !healthy) {
		case BecameFailing:
			log.With("message", node.Message).Warn("Node is failing")
		case Recovered:
			log.Info("Node recovered")
		}
	}
	return nil
}
