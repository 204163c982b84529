package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

func TestOrchestratorOptions(t *testing.T) {
	b := config.BulkConfig{FailureThreshold: 9, MaxDelay: 2 * time.Second}
	opts := OrchestratorOptions(bulk.ScheduledOptions(), config.BulkProfile{BatchSize: 12}, b)

	assert.Equal(t, 12, opts.BatchSize)
	assert.Equal(t, 1, opts.ConcurrencyLimit, "zero keeps the preset")
	assert.Equal(t, 500*time.Millisecond, opts.InitialDelay)
	assert.Equal(t, 9, opts.FailureThreshold)
	assert.Equal(t, 2*time.Second, opts.MaxDelay)
	assert.Equal(t, "scheduled", opts.Scope)
}

func TestNewEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	doc := `servers:
  - id: "1"
    remark: main
    type: marzneshin
    host: https://panel.example.com
    username: root
    password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := &config.Config{Panel: config.PanelConfig{ServersFile: path, MaxRetries: 1}}
	engine, err := NewEngine(cfg, nil, testutil.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	servers, err := engine.Servers.ListServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 1)
	assert.Equal(t, 8, engine.Cleanup.Options().BatchSize)
	assert.Equal(t, 20, engine.Assignment.Options().BatchSize)
	assert.Equal(t, 5, engine.Scheduled.Options().BatchSize)

	cfg.Panel.ServersFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewEngine(cfg, nil, nil)
	assert.Error(t, err)
}
