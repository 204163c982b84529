package services

import (
	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/panelclient"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/repository/file"
)

// Engine bundles the panel access and the three orchestrator profiles
// shared by the daemon and the CLI.
type Engine struct {
	Servers    panel.ServerRepository
	Client     panel.Client
	Cleanup    *bulk.Orchestrator
	Assignment *bulk.Orchestrator
	Scheduled  *bulk.Orchestrator
}

// NewEngine loads the servers file and builds the panel client and
// orchestrators from configuration.
func NewEngine(cfg *config.Config, clk clock.Clock, log *logger.Logger) (*Engine, error) {
	servers, err := file.LoadServers(cfg.Panel.ServersFile)
	if err != nil {
		return nil, err
	}
	return NewEngineWithServers(cfg, servers, panelclient.NewManager(TransportConfig(cfg.Panel), clk, log), clk, log), nil
}

// NewEngineWithServers builds the orchestrators over an existing server
// repository and panel client.
func NewEngineWithServers(cfg *config.Config, servers panel.ServerRepository, client panel.Client, clk clock.Clock, log *logger.Logger) *Engine {
	return &Engine{
		Servers:    servers,
		Client:     client,
		Cleanup:    bulk.NewOrchestrator(client, OrchestratorOptions(bulk.InteractiveCleanupOptions(), cfg.Bulk.Cleanup, cfg.Bulk), clk, log),
		Assignment: bulk.NewOrchestrator(client, OrchestratorOptions(bulk.InteractiveAssignmentOptions(), cfg.Bulk.Assignment, cfg.Bulk), clk, log),
		Scheduled:  bulk.NewOrchestrator(client, OrchestratorOptions(bulk.ScheduledOptions(), cfg.Bulk.Scheduled, cfg.Bulk), clk, log),
	}
}

// TransportConfig maps panel settings onto the HTTP transport
func TransportConfig(p config.PanelConfig) panelclient.TransportConfig {
	return panelclient.TransportConfig{
		Timeout:        p.Timeout,
		MaxRetries:     p.MaxRetries,
		RetryBackoff:   p.RetryBackoff,
		RequestsPerSec: p.RequestsPerSec,
		Burst:          p.Burst,
	}
}

// OrchestratorOptions overlays a configured profile on a preset. Zero
// values keep the preset.
func OrchestratorOptions(base bulk.Options, p config.BulkProfile, b config.BulkConfig) bulk.Options {
	if p.BatchSize > 0 {
		base.BatchSize = p.BatchSize
	}
	if p.ConcurrencyLimit > 0 {
		base.ConcurrencyLimit = p.ConcurrencyLimit
	}
	if p.InitialDelay > 0 {
		base.InitialDelay = p.InitialDelay
	}
	if b.MinDelay > 0 {
		base.MinDelay = b.MinDelay
	}
	if b.MaxDelay > 0 {
		base.MaxDelay = b.MaxDelay
	}
	if b.FailureThreshold > 0 {
		base.FailureThreshold = b.FailureThreshold
	}
	if b.RecoveryTimeout > 0 {
		base.RecoveryTimeout = b.RecoveryTimeout
	}
	return base
}
