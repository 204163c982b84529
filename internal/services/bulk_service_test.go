package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	apperrors "github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/testutil"
)

func newBulkFixture() (*BulkService, *testutil.MockPanelClient, *testutil.MockRunRepository) {
	client := testutil.NewMockPanelClient()
	fc := clock.NewFake(t0)
	log := testutil.NewTestLogger()
	runs := testutil.NewMockRunRepository()
	servers := testutil.NewMockServerRepository(testutil.MarzneshinServer("1"), testutil.MarzbanServer("2"))

	svc := NewBulkService(
		servers,
		client,
		bulk.NewOrchestrator(client, bulk.InteractiveCleanupOptions(), fc, log),
		bulk.NewOrchestrator(client, bulk.InteractiveAssignmentOptions(), fc, log),
		runs,
		fc,
		log,
	)
	return svc, client, runs
}

func TestBulkService_Listings(t *testing.T) {
	svc, client, _ := newBulkFixture()
	client.Admins = []panel.Admin{{Username: "zed"}, {Username: "amy", IsSudo: true}}
	client.Configs = []panel.ServiceConfig{{ID: 1, Name: "vless"}}
	ctx := context.Background()

	servers, err := svc.ListServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	admins, err := svc.ListAdmins(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALL", "amy", "zed"}, admins)

	services, err := svc.ListServices(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "vless", services[0].Name)

	opts, err := svc.StatusOptions(ctx, "2")
	require.NoError(t, err)
	values := make([]string, 0, len(opts))
	for _, o := range opts {
		values = append(values, o.Value)
	}
	assert.ElementsMatch(t, []string{"disabled", "limited", "expired", "on_hold"}, values)

	_, err = svc.ListAdmins(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestBulkService_CleanupRecordsRun(t *testing.T) {
	svc, client, runs := newBulkFixture()
	client.AddUsers("a", expiredUser("x"), activeUser("y"))

	var mu sync.Mutex
	var progress []bulk.Counters
	sink := bulk.ProgressFunc(func(admin string, c bulk.Counters) error {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, c)
		return nil
	})

	res, err := svc.Cleanup(context.Background(), "1", []string{"a"}, []string{bulk.StatusExpired}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalDeleted)
	assert.NotEmpty(t, progress)

	require.Equal(t, 1, runs.Count())
	run := runs.Runs[0]
	assert.Equal(t, cleanup.TriggerInteractive, run.Trigger)
	assert.Equal(t, cleanup.IntentCleanup, run.Intent)
	assert.Equal(t, "1", run.ServerID)
	assert.Empty(t, run.TaskID)
}

func TestBulkService_Assign(t *testing.T) {
	svc, client, runs := newBulkFixture()
	client.AddUsers("a", activeUser("x"))

	res, err := svc.Assign(context.Background(), "1", []string{"a"}, []int{3}, bulk.ActionAdd, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)

	u, _ := client.User("x")
	assert.Equal(t, []int{3}, u.ServiceIDs)
	assert.Equal(t, cleanup.IntentAssignment, runs.Runs[0].Intent)
}

func TestBulkService_RejectedRuns(t *testing.T) {
	svc, _, runs := newBulkFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		code string
	}{
		{"missing server", func() error {
			_, err := svc.Cleanup(ctx, "404", []string{"a"}, []string{"expired"}, nil)
			return err
		}, apperrors.ErrCodeNotFound},
		{"empty admins", func() error {
			_, err := svc.Cleanup(ctx, "1", nil, []string{"expired"}, nil)
			return err
		}, apperrors.ErrCodeNotFound},
		{"assignment on marzban", func() error {
			_, err := svc.Assign(ctx, "2", []string{"a"}, []int{1}, bulk.ActionAdd, nil)
			return err
		}, apperrors.ErrCodeConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, runs.Count(), "rejected runs are not recorded")
}
