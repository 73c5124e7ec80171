package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
	badgerstore "github.com/stridesync/stridesync/internal/storage/badger"
)

// fakeSource serves canned activities and writes stub files on download.
type fakeSource struct {
	mu         sync.Mutex
	activities []models.SourceActivity
	downloads  int
	failAll    bool
}

func (s *fakeSource) Login(ctx context.Context, email, password string) error { return nil }

func (s *fakeSource) ListActivities(ctx context.Context, startDate, endDate time.Time, sportTypes []string) ([]models.SourceActivity, error) {
	return s.activities, nil
}

func (s *fakeSource) Download(ctx context.Context, labelID string, sportType int, format, savePath string) (string, error) {
	s.mu.Lock()
	s.downloads++
	fail := s.failAll
	s.mu.Unlock()
	if fail {
		return "", fmt.Errorf("download refused")
	}
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(savePath, []byte("FITDATA-"+labelID), 0644); err != nil {
		return "", err
	}
	return savePath, nil
}

// fakeSink records metadata calls and answers uploads via uploadFn.
type fakeSink struct {
	mu         sync.Mutex
	uploadFn   func(label string) (interfaces.UploadResult, error)
	activities []models.SinkActivity
	gate       chan struct{}
	names      map[string]string
	privacies  map[string]string
	gearLinks  map[string]string
	nameErr    error
	gearErr    error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		names:     map[string]string{},
		privacies: map[string]string{},
		gearLinks: map[string]string{},
	}
}

func labelFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".fit")
}

func (s *fakeSink) Login(ctx context.Context, email, password string) error { return nil }

func (s *fakeSink) UploadFIT(ctx context.Context, path string) (interfaces.UploadResult, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.uploadFn(labelFromPath(path))
}

func (s *fakeSink) ListActivities(ctx context.Context, startDate, endDate time.Time) ([]models.SinkActivity, error) {
	return s.activities, nil
}

func (s *fakeSink) SetActivityName(ctx context.Context, activityID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameErr != nil {
		return s.nameErr
	}
	s.names[activityID] = name
	return nil
}

func (s *fakeSink) SetActivityDescription(ctx context.Context, activityID, description string) error {
	return nil
}

func (s *fakeSink) SetActivityPrivacy(ctx context.Context, activityID, visibility string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privacies[activityID] = visibility
	return nil
}

func (s *fakeSink) LinkGear(ctx context.Context, gearID, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gearErr != nil {
		return s.gearErr
	}
	s.gearLinks[activityID] = gearID
	return nil
}

func (s *fakeSink) ListGear(ctx context.Context, limit int) ([]models.GearEntry, error) {
	return nil, nil
}

type fakeFactory struct {
	source    *fakeSource
	sink      *fakeSink
	sourceErr error
	sinkErr   error
}

func (f *fakeFactory) SourceClient(ctx context.Context) (interfaces.SourceClient, error) {
	if f.sourceErr != nil {
		return nil, f.sourceErr
	}
	return f.source, nil
}

func (f *fakeFactory) SinkClient(ctx context.Context) (interfaces.SinkClient, error) {
	if f.sinkErr != nil {
		return nil, f.sinkErr
	}
	return f.sink, nil
}

func newWorkerFixture(t *testing.T, factory *fakeFactory) (*Worker, interfaces.StorageManager, *common.Config) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Downloads.Dir = t.TempDir()
	cfg.Transfer.WorkerIdleSleep = 10 * time.Millisecond

	mgr, err := badgerstore.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	worker := NewWorker(mgr.Jobs(), factory, cfg, arbor.NewLogger())
	t.Cleanup(func() { worker.Stop(true, 5*time.Second) })

	return worker, mgr, cfg
}

func fastSnapshot() models.TransferSettings {
	snapshot := models.DefaultTransferSettings()
	snapshot.Retry.BaseDelaySeconds = 0
	snapshot.Retry.MaxDelaySeconds = 1
	return snapshot
}

func makeActivities(labels ...string) []models.SourceActivity {
	activities := make([]models.SourceActivity, len(labels))
	for i, label := range labels {
		activities[i] = models.SourceActivity{
			LabelID:   label,
			SportType: 100,
			Name:      "Run " + label,
			StartTime: "2024-01-15 08:30:00",
		}
	}
	return activities
}

func waitForItemStatusCount(t *testing.T, store interfaces.JobStore, jobID uint64, status models.ItemStatus, count int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		items, err := store.ListItems(context.Background(), jobID, &interfaces.ItemListOptions{Status: string(status)})
		require.NoError(t, err)
		if len(items) >= count {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never had %d items in %s", jobID, count, status)
}

func waitForJobStatus(t *testing.T, store interfaces.JobStore, jobID uint64, status models.JobStatus) *models.TransferJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %d never reached %s (last: %s)", jobID, status, job.Status)
	return nil
}

func TestWorkerHappyPathSingleItem(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G1"}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, cfg := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)

	assert.Equal(t, models.JobCounts{Total: 1, Completed: 1, Success: 1}, job.Counts)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	items, err := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, models.ItemStatusSuccess, item.Status)
	assert.Equal(t, "G1", item.SinkID)
	assert.Equal(t, models.MetadataStatusSuccess, item.MetadataStatus)
	assert.Equal(t, CachePath(cfg.Downloads.Dir, 100, "a1"), item.LocalPath)
	assert.FileExists(t, item.LocalPath)

	// Default title template rendered from the snapshot.
	assert.Equal(t, "跑步 2024-01-15 08:30", sink.names["G1"])
}

func TestWorkerExplicitDuplicate(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{Duplicate: true}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)
	assert.Equal(t, 1, job.Counts.Skipped)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemStatusSkipped, items[0].Status)
	assert.Equal(t, "duplicate", items[0].SinkID)
	assert.Equal(t, models.MetadataStatusSkipped, items[0].MetadataStatus)
	assert.Empty(t, sink.names)
}

func TestWorkerAmbiguousConfirmedByProbe(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{Ambiguous: true}, nil
	}
	sink.activities = []models.SinkActivity{
		{ActivityID: "999", StartTimeLocal: "2024-01-15 08:30:00"},
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	activities := makeActivities("a1")
	activities[0].StartTime = "2024-01-15 08:30:30"
	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, activities, fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemStatusSkipped, items[0].Status)
	assert.Equal(t, "999", items[0].SinkID)
}

func TestWorkerAmbiguousUnconfirmedExhaustsRetries(t *testing.T) {
	sink := newFakeSink()
	uploads := 0
	var mu sync.Mutex
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		mu.Lock()
		uploads++
		mu.Unlock()
		return interfaces.UploadResult{Ambiguous: true}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusFailed)
	assert.Equal(t, 1, job.Counts.Failed)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemStatusFailed, items[0].Status)
	assert.Equal(t, 3, items[0].RetryCount)
	assert.Contains(t, items[0].ErrorMessage, "could not be confirmed")
	assert.Equal(t, 3, uploads)
}

func TestWorkerPartialFailureCompletes(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		if label == "a3" || label == "a7" {
			return interfaces.UploadResult{}, fmt.Errorf("upload refused for %s", label)
		}
		return interfaces.UploadResult{SinkID: "G-" + label}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	labels := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10"}
	snapshot := fastSnapshot()
	snapshot.Concurrency = 3
	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-16", nil, makeActivities(labels...), snapshot)
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)

	assert.Equal(t, 10, job.Counts.Total)
	assert.Equal(t, 8, job.Counts.Success)
	assert.Equal(t, 2, job.Counts.Failed)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	for _, item := range items {
		if item.LabelID == "a3" || item.LabelID == "a7" {
			assert.Equal(t, models.ItemStatusFailed, item.Status)
			assert.Contains(t, item.ErrorMessage, "upload refused")
		} else {
			assert.Equal(t, models.ItemStatusSuccess, item.Status)
		}
	}
}

func TestWorkerMetadataFailureIsWarningOnly(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G1"}, nil
	}
	sink.nameErr = fmt.Errorf("name service down")
	sink.gearErr = fmt.Errorf("gear service down")
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	snapshot := fastSnapshot()
	snapshot.Gear = models.GearSettings{Enabled: true, GearID: "gear-1"}
	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), snapshot)
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)
	assert.Equal(t, 1, job.Counts.Success)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemStatusSuccess, items[0].Status)
	assert.Equal(t, models.MetadataStatusFailed, items[0].MetadataStatus)
	assert.Contains(t, items[0].MetadataError, "name:")
	assert.Contains(t, items[0].MetadataError, "gear:")
	assert.Contains(t, items[0].MetadataError, "; ")
}

func TestWorkerUsesDownloadCache(t *testing.T) {
	source := &fakeSource{}
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G1"}, nil
	}
	factory := &fakeFactory{source: source, sink: sink}
	worker, mgr, cfg := newWorkerFixture(t, factory)
	ctx := context.Background()

	// Pre-populate the cache for this label.
	cached := CachePath(cfg.Downloads.Dir, 100, "a1")
	require.NoError(t, os.MkdirAll(filepath.Dir(cached), 0755))
	require.NoError(t, os.WriteFile(cached, []byte("CACHED"), 0644))

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)
	assert.Equal(t, 0, source.downloads)
}

func TestWorkerPauseResume(t *testing.T) {
	sink := newFakeSink()
	sink.gate = make(chan struct{})
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G-" + label}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-16", nil,
		makeActivities("a1", "a2", "a3", "a4", "a5", "a6"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()

	// Wait until the first batch of 2 is in flight behind the gate, pause,
	// then let the batch finish its stage.
	waitForItemStatusCount(t, mgr.Jobs(), jobID, models.ItemStatusUploading, 2)
	worker.Pause()
	sink.gate <- struct{}{}
	sink.gate <- struct{}{}

	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusPaused)
	assert.Equal(t, 2, job.Counts.Success)
	assert.True(t, worker.Status().Paused)

	pending, err := mgr.Jobs().PendingItems(ctx, jobID, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	worker.Resume()
	for i := 0; i < 4; i++ {
		sink.gate <- struct{}{}
	}

	job = waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)
	assert.Equal(t, 6, job.Counts.Success)
}

func TestWorkerStopTimeout(t *testing.T) {
	sink := newFakeSink()
	sink.gate = make(chan struct{})
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G1"}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	_, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	// Give the worker a moment to claim and block on the gate.
	time.Sleep(100 * time.Millisecond)

	assert.False(t, worker.Stop(true, 50*time.Millisecond))

	// Release the item so cleanup can drain.
	close(sink.gate)
}

func TestWorkerAuthFailureFailsItems(t *testing.T) {
	factory := &fakeFactory{source: &fakeSource{}, sink: newFakeSink(), sinkErr: fmt.Errorf("credentials rejected")}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	worker.Start()
	job := waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusFailed)
	assert.Equal(t, 1, job.Counts.Failed)

	items, _ := mgr.Jobs().ListItems(ctx, jobID, nil)
	require.Len(t, items, 1)
	// Auth errors do not retry and never touch the retry counter.
	assert.Equal(t, 0, items[0].RetryCount)
	assert.Contains(t, items[0].ErrorMessage, "authentication failed")
}

func TestProcessJobRequeuesNonTerminal(t *testing.T) {
	sink := newFakeSink()
	sink.uploadFn = func(label string) (interfaces.UploadResult, error) {
		return interfaces.UploadResult{SinkID: "G1"}, nil
	}
	factory := &fakeFactory{source: &fakeSource{}, sink: sink}
	worker, mgr, _ := newWorkerFixture(t, factory)
	ctx := context.Background()

	jobID, err := mgr.Jobs().CreateJob(ctx, "2024-01-15", "2024-01-15", nil, makeActivities("a1"), fastSnapshot())
	require.NoError(t, err)

	require.NoError(t, worker.ProcessJob(ctx, jobID))
	waitForJobStatus(t, mgr.Jobs(), jobID, models.JobStatusCompleted)

	// Terminal jobs cannot be requeued.
	assert.Error(t, worker.ProcessJob(ctx, jobID))
}
