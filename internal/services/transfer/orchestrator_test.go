package transfer

import (
	"context"
	"fmt"
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

func newOrchestratorFixture(t *testing.T, factory *fakeFactory) (*Orchestrator, interfaces.StorageManager) {
	t.Helper()

	mgr, err := badgerstore.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return NewOrchestrator(mgr.Jobs(), mgr.Settings(), factory, arbor.NewLogger()), mgr
}

func TestCreateJobEnumeratesAndSnapshots(t *testing.T) {
	source := &fakeSource{activities: makeActivities("a1", "a2", "a3")}
	factory := &fakeFactory{source: source, sink: newFakeSink()}
	orch, mgr := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	// Settings saved now must be captured by the job created afterwards.
	settings := models.DefaultTransferSettings()
	settings.Concurrency = 7
	require.NoError(t, mgr.Settings().SaveSettings(ctx, settings))

	jobID, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", []string{"100"})
	require.NoError(t, err)

	job, err := mgr.Jobs().GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 3, job.Counts.Total)
	assert.Equal(t, 7, job.SettingsSnapshot.Concurrency)
	assert.Equal(t, "2024-01-01", job.StartDate)
	assert.Equal(t, []string{"100"}, job.SportTypes)

	items, err := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestCreateJobRejectsBadDates(t *testing.T) {
	factory := &fakeFactory{source: &fakeSource{}, sink: newFakeSink()}
	orch, _ := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	_, err := orch.CreateJob(ctx, "01/15/2024", "2024-01-31", nil)
	assert.Error(t, err)
	assert.False(t, IsRetryable(err))

	_, err = orch.CreateJob(ctx, "2024-01-31", "2024-01-01", nil)
	assert.Error(t, err)
}

func TestCreateJobRequiresBothLogins(t *testing.T) {
	ctx := context.Background()

	factory := &fakeFactory{source: &fakeSource{}, sink: newFakeSink(), sourceErr: fmt.Errorf("bad password")}
	orch, _ := newOrchestratorFixture(t, factory)
	_, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.PlatformCoros, authErr.Platform)

	factory = &fakeFactory{source: &fakeSource{}, sink: newFakeSink(), sinkErr: fmt.Errorf("bad password")}
	orch, mgr := newOrchestratorFixture(t, factory)
	_, err = orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.PlatformGarmin, authErr.Platform)

	// Nothing was created.
	jobs, err := mgr.Jobs().ListJobs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestCreateJobWithEmptyEnumeration(t *testing.T) {
	factory := &fakeFactory{source: &fakeSource{}, sink: newFakeSink()}
	orch, mgr := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	jobID, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	require.NoError(t, err)

	job, err := mgr.Jobs().GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Counts.Total)
}

func TestRerunMetadataOnlyTouchesFailed(t *testing.T) {
	sink := newFakeSink()
	factory := &fakeFactory{source: &fakeSource{activities: makeActivities("a1", "a2", "a3")}, sink: sink}
	orch, mgr := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	jobID, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	require.NoError(t, err)

	items, err := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// a1: metadata failed with a sink id — should be reprocessed.
	// a2: metadata failed but only the duplicate sentinel — skipped.
	// a3: metadata already succeeded — untouched.
	success := models.ItemStatusSuccess
	metaFailed := models.MetadataStatusFailed
	metaSuccess := models.MetadataStatusSuccess
	sinkID1, sinkDup, sinkID3 := "G1", "duplicate", "G3"
	oldError := "name: boom"
	require.NoError(t, mgr.Jobs().UpdateItem(ctx, items[0].ID, models.ItemPatch{
		Status: &success, SinkID: &sinkID1, MetadataStatus: &metaFailed, MetadataError: &oldError,
	}))
	require.NoError(t, mgr.Jobs().UpdateItem(ctx, items[1].ID, models.ItemPatch{
		Status: &success, SinkID: &sinkDup, MetadataStatus: &metaFailed, MetadataError: &oldError,
	}))
	require.NoError(t, mgr.Jobs().UpdateItem(ctx, items[2].ID, models.ItemPatch{
		Status: &success, SinkID: &sinkID3, MetadataStatus: &metaSuccess,
	}))

	reprocessed, err := orch.RerunMetadata(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, reprocessed)

	item, err := mgr.Jobs().GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MetadataStatusSuccess, item.MetadataStatus)
	assert.Empty(t, item.MetadataError)
	assert.Contains(t, sink.names, "G1")
	assert.NotContains(t, sink.names, "G3")
}

func TestRerunMetadataNoCandidates(t *testing.T) {
	factory := &fakeFactory{source: &fakeSource{activities: makeActivities("a1")}, sink: newFakeSink()}
	orch, _ := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	jobID, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	require.NoError(t, err)

	reprocessed, err := orch.RerunMetadata(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, reprocessed)
}

func TestCancelThenNoFurtherProgress(t *testing.T) {
	factory := &fakeFactory{source: &fakeSource{activities: makeActivities("a1", "a2")}, sink: newFakeSink()}
	orch, mgr := newOrchestratorFixture(t, factory)
	ctx := context.Background()

	jobID, err := orch.CreateJob(ctx, "2024-01-01", "2024-01-31", nil)
	require.NoError(t, err)

	cancelled, err := orch.CancelJob(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Claims after cancellation must fail: no item can move toward success.
	items, err := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.NoError(t, err)
	for _, item := range items {
		assert.Error(t, mgr.Jobs().ClaimItem(ctx, item.ID))
	}

	deleted, err := orch.DeleteJob(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = mgr.Jobs().GetJob(ctx, jobID)
	assert.Error(t, err)
}
