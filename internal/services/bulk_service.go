package services

import (
	"context"
	"sort"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
)

// BulkService is the operator-facing entry point for interactive runs
type BulkService struct {
	servers    panel.ServerRepository
	client     panel.Client
	cleanup    BulkRunner
	assignment BulkRunner
	runs       cleanup.RunRepository
	clock      clock.Clock
	logger     *logger.Logger
}

// NewBulkService creates a bulk service. cleanupRunner and assignRunner
// are usually orchestrators built with the interactive option presets.
// runs may be nil.
func NewBulkService(
	servers panel.ServerRepository,
	client panel.Client,
	cleanupRunner BulkRunner,
	assignRunner BulkRunner,
	runs cleanup.RunRepository,
	clk clock.Clock,
	log *logger.Logger,
) *BulkService {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BulkService{
		servers:    servers,
		client:     client,
		cleanup:    cleanupRunner,
		assignment: assignRunner,
		runs:       runs,
		clock:      clk,
		logger:     log.Component("bulk_service"),
	}
}

// ListServers returns every configured server
func (s *BulkService) ListServers(ctx context.Context) ([]*panel.Server, error) {
	return s.servers.ListServers(ctx)
}

// ListAdmins returns the selectable admin names of a server, "ALL" first
func (s *BulkService) ListAdmins(ctx context.Context, serverID string) ([]string, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	admins, err := s.client.GetAdmins(ctx, server)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(admins))
	for _, a := range admins {
		names = append(names, a.Username)
	}
	sort.Strings(names)
	return append([]string{bulk.AllAdmins}, names...), nil
}

// ListServices returns the services (or inbounds) of a server
func (s *BulkService) ListServices(ctx context.Context, serverID string) ([]panel.ServiceConfig, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return s.client.GetConfigs(ctx, server)
}

// StatusOptions returns the cleanup filters valid for a server
func (s *BulkService) StatusOptions(ctx context.Context, serverID string) ([]bulk.StatusOption, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return bulk.StatusOptions(server.Type)
}

// Assign adds or removes services on every user of the given admins
func (s *BulkService) Assign(ctx context.Context, serverID string, admins []string, serviceIDs []int, action bulk.Action, sink bulk.ProgressSink) (*bulk.AggregateResult, error) {
	intent := bulk.AssignmentIntent{ServiceIDs: serviceIDs, Action: action}
	return s.run(ctx, s.assignment, serverID, admins, intent, sink)
}

// Cleanup deletes users of the given admins matching any status filter
func (s *BulkService) Cleanup(ctx context.Context, serverID string, admins []string, filters []string, sink bulk.ProgressSink) (*bulk.AggregateResult, error) {
	intent := bulk.CleanupIntent{StatusFilters: filters}
	return s.run(ctx, s.cleanup, serverID, admins, intent, sink)
}

func (s *BulkService) run(ctx context.Context, runner BulkRunner, serverID string, admins []string, intent bulk.Intent, sink bulk.ProgressSink) (*bulk.AggregateResult, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	agg, err := runner.Run(ctx, server, admins, intent, sink)
	if agg == nil && err != nil {
		// rejected before any work
		return nil, err
	}

	run := newRunRecord(runSpec{
		serverID: serverID,
		intent:   intent.Kind(),
		trigger:  cleanup.TriggerInteractive,
		admins:   admins,
	}, started, s.clock.Now(), agg, err)
	recordRun(ctx, s.runs, run, s.logger)

	return agg, err
}
