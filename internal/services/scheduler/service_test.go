package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
	badgerstore "github.com/stridesync/stridesync/internal/storage/badger"
)

func newTestScheduler(t *testing.T) (*Service, interfaces.TaskStore) {
	t.Helper()

	mgr, err := badgerstore.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return NewService(mgr.Tasks(), nil, nil, arbor.NewLogger()), mgr.Tasks()
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, ValidateCron("0 6 * * *"))
	assert.NoError(t, ValidateCron("@daily"))
	assert.Error(t, ValidateCron("not a cron"))
	assert.Error(t, ValidateCron(""))
}

func TestSaveTaskValidates(t *testing.T) {
	svc, _ := newTestScheduler(t)
	ctx := context.Background()

	err := svc.SaveTask(ctx, &models.SyncTask{CronExpression: "0 6 * * *"})
	assert.Error(t, err)

	err = svc.SaveTask(ctx, &models.SyncTask{Name: "nightly", CronExpression: "bogus"})
	assert.Error(t, err)

	err = svc.SaveTask(ctx, &models.SyncTask{Name: "nightly", CronExpression: "0 6 * * *", Enabled: true, LookbackDays: 7})
	require.NoError(t, err)

	tasks, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "nightly", tasks[0].Name)
	assert.NotZero(t, tasks[0].ID)
}

func TestReloadRegistersOnlyEnabledTasks(t *testing.T) {
	svc, store := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &models.SyncTask{Name: "on", CronExpression: "0 6 * * *", Enabled: true}))
	require.NoError(t, store.SaveTask(ctx, &models.SyncTask{Name: "off", CronExpression: "0 7 * * *", Enabled: false}))
	require.NoError(t, store.SaveTask(ctx, &models.SyncTask{Name: "broken", CronExpression: "61 99 * * *", Enabled: true}))

	require.NoError(t, svc.Reload(ctx))

	svc.mu.Lock()
	registered := len(svc.entries)
	svc.mu.Unlock()
	assert.Equal(t, 1, registered)
}

func TestDeleteTaskDropsSchedule(t *testing.T) {
	svc, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveTask(ctx, &models.SyncTask{Name: "nightly", CronExpression: "0 6 * * *", Enabled: true}))

	tasks, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	deleted, err := svc.DeleteTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	svc.mu.Lock()
	registered := len(svc.entries)
	svc.mu.Unlock()
	assert.Zero(t, registered)

	deleted, err = svc.DeleteTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
