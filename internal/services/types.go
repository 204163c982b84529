package services

import (
	"context"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
)

// BulkRunner runs one bulk intent against a server. *bulk.Orchestrator
// implements it.
type BulkRunner interface {
	Run(ctx context.Context, server *panel.Server, admins []string, intent bulk.Intent, sink bulk.ProgressSink) (*bulk.AggregateResult, error)
}

type runSpec struct {
	taskID   string
	serverID string
	intent   cleanup.Intent
	trigger  cleanup.Trigger
	admins   []string
}

// newRunRecord folds a bulk outcome into a persisted run record
func newRunRecord(spec runSpec, started, finished time.Time, agg *bulk.AggregateResult, runErr error) *cleanup.Run {
	run := &cleanup.Run{
		TaskID:     spec.taskID,
		ServerID:   spec.serverID,
		Intent:     spec.intent,
		Trigger:    spec.trigger,
		Admins:     append([]string(nil), spec.admins...),
		StartedAt:  started,
		FinishedAt: finished,
		Status:     cleanup.RunStatusCompleted,
	}

	if agg != nil {
		run.TotalUsers = agg.TotalUsers
		run.TotalOperations = agg.TotalOperations
		run.TotalDeleted = agg.TotalDeleted
		run.Successful = agg.Successful
		run.Failed = agg.Failed
		run.Skipped = agg.Skipped
		if agg.Failed > 0 {
			run.Status = cleanup.RunStatusPartial
		}
		if len(agg.Errors) > 0 {
			run.Error = agg.Errors[0]
		}
	}

	if runErr != nil {
		run.Error = runErr.Error()
		if agg == nil {
			run.Status = cleanup.RunStatusFailed
		} else {
			run.Status = cleanup.RunStatusPartial
		}
	}
	return run
}

// recordRun stores a run, logging rather than failing on storage errors.
// A run interrupted by cancellation is still recorded.
func recordRun(ctx context.Context, repo cleanup.RunRepository, run *cleanup.Run, log *logger.Logger) {
	if repo == nil {
		return
	}
	if err := repo.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		log.WithFields(map[string]interface{}{
			"task_id":   run.TaskID,
			"server_id": run.ServerID,
		}).ErrorWithErr(err, "Failed to record run")
	}
}

// cronLogger adapts the service logger to cron.Logger
type cronLogger struct {
	logger *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(kvFields(keysAndValues)).ErrorWithErr(err, msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
