package transfer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
	"github.com/stridesync/stridesync/internal/services/settings"
)

// WorkerStatus is the externally visible worker state.
type WorkerStatus struct {
	Running      bool   `json:"running"`
	Paused       bool   `json:"paused"`
	CurrentJobID uint64 `json:"current_job_id,omitempty"`
}

// Worker drives transfer jobs: it picks the oldest pending job, claims items
// in batches of the job's snapshot concurrency, and runs each item through
// the download/upload/metadata pipeline.
type Worker struct {
	store   interfaces.JobStore
	clients interfaces.ClientFactory
	probe   *DuplicateProbe
	config  *common.Config
	logger  arbor.ILogger

	mu            sync.Mutex
	running       bool
	paused        bool
	stopRequested bool
	currentJobID  uint64
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewWorker builds a stopped worker.
func NewWorker(store interfaces.JobStore, clients interfaces.ClientFactory, config *common.Config, logger arbor.ILogger) *Worker {
	return &Worker{
		store:   store,
		clients: clients,
		probe:   NewDuplicateProbe(config.DuplicateConfirmWindow(), config.Transfer.DuplicateConfirmSearchDays, logger),
		config:  config,
		logger:  logger,
	}
}

// Start launches the driver loop. Idempotent while running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopRequested = false
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(w.stopCh, w.doneCh)
	w.logger.Info().Msg("Transfer worker started")
}

// Stop signals the driver to halt. With wait set it blocks until the loop
// drains or the timeout passes; returns false on timeout. In-flight HTTP
// requests finish under their own per-request timeouts.
func (w *Worker) Stop(wait bool, timeout time.Duration) bool {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return true
	}
	if !w.stopRequested {
		close(w.stopCh)
		w.stopRequested = true
	}
	done := w.doneCh
	w.mu.Unlock()

	if !wait {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		w.logger.Warn().Dur("timeout", timeout).Msg("Transfer worker did not drain before timeout")
		return false
	}
}

// Pause stops new item claims after the in-flight batch completes. Pause and
// stop are honored at batch boundaries only: an item that has already been
// claimed runs through all of its stages rather than halting mid-pipeline,
// which keeps items out of the transient downloading/uploading states while
// the worker is idle.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	w.logger.Info().Msg("Transfer worker paused")
}

// Resume clears the pause signal.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
	w.logger.Info().Msg("Transfer worker resumed")
}

// ProcessJob queues a job for the driver: non-terminal jobs are reset to
// pending and the worker is started if needed.
func (w *Worker) ProcessJob(ctx context.Context, jobID uint64) error {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %d is %s and cannot be restarted", jobID, job.Status)
	}
	if job.Status != models.JobStatusPending {
		if err := w.store.UpdateJobStatus(ctx, jobID, models.JobStatusPending, ""); err != nil {
			return err
		}
	}
	w.Start()
	return nil
}

// Status reports the worker state.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{
		Running:      w.running,
		Paused:       w.paused,
		CurrentJobID: w.currentJobID,
	}
}

func (w *Worker) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *Worker) setCurrentJob(jobID uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentJobID = jobID
}

func stopped(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// run is the driver loop: oldest pending job first, short sleep when idle.
func (w *Worker) run(stopCh chan struct{}, doneCh chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.currentJobID = 0
		w.mu.Unlock()
		close(doneCh)
		w.logger.Info().Msg("Transfer worker stopped")
	}()

	ctx := context.Background()
	idle := w.config.Transfer.WorkerIdleSleep

	for {
		if stopped(stopCh) {
			return
		}
		if w.isPaused() {
			w.sleep(stopCh, idle)
			continue
		}

		job, err := w.nextPendingJob(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to query pending jobs")
			w.sleep(stopCh, idle)
			continue
		}
		if job == nil {
			w.sleep(stopCh, idle)
			continue
		}

		w.setCurrentJob(job.ID)
		w.runJob(ctx, stopCh, job)
		w.setCurrentJob(0)
	}
}

func (w *Worker) sleep(stopCh chan struct{}, d time.Duration) {
	select {
	case <-stopCh:
	case <-time.After(d):
	}
}

// nextPendingJob returns the oldest job with status pending, or nil.
func (w *Worker) nextPendingJob(ctx context.Context) (*models.TransferJob, error) {
	jobs, err := w.store.ListJobs(ctx, &interfaces.JobListOptions{Status: string(models.JobStatusPending)})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	// ListJobs is newest-first.
	return jobs[len(jobs)-1], nil
}

// runJob processes one job to completion, pause, or stop.
func (w *Worker) runJob(ctx context.Context, stopCh chan struct{}, job *models.TransferJob) {
	if err := w.store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
		w.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to mark job running")
		return
	}

	snapshot := job.SettingsSnapshot
	policy := NewRetryPolicy(snapshot.Retry)
	concurrency := snapshot.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	w.logger.Info().
		Int64("job_id", int64(job.ID)).
		Int("concurrency", concurrency).
		Int("total", job.Counts.Total).
		Msg("Processing transfer job")

	for {
		if stopped(stopCh) {
			return
		}
		if w.isPaused() {
			if err := w.store.UpdateJobStatus(ctx, job.ID, models.JobStatusPaused, ""); err != nil {
				w.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to mark job paused")
			}
			for w.isPaused() {
				if stopped(stopCh) {
					return
				}
				w.sleep(stopCh, w.config.Transfer.WorkerIdleSleep)
			}
			if err := w.store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
				w.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to resume job")
				return
			}
		}

		// Guard against cancellation racing the loop.
		current, err := w.store.GetJob(ctx, job.ID)
		if err != nil {
			w.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to reload job")
			return
		}
		if current.Status.IsTerminal() {
			return
		}

		batch, err := w.store.PendingItems(ctx, job.ID, concurrency)
		if err != nil {
			w.failJob(ctx, job.ID, fmt.Sprintf("failed to fetch pending items: %v", err))
			return
		}
		if len(batch) == 0 {
			w.finishJob(ctx, job.ID)
			return
		}

		var wg sync.WaitGroup
		for _, item := range batch {
			if err := w.store.ClaimItem(ctx, item.ID); err != nil {
				// Someone else claimed or cancelled it.
				continue
			}
			wg.Add(1)
			go func(item *models.TransferItem) {
				defer wg.Done()
				w.processItem(ctx, stopCh, snapshot, policy, item)
			}(item)
		}
		wg.Wait()

		if _, err := w.store.RecomputeCounts(ctx, job.ID); err != nil {
			w.logger.Error().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to recompute counts")
		}
	}
}

// finishJob applies the completion rule: all-failed jobs fail, anything with
// at least one success (or nothing failed) completes.
func (w *Worker) finishJob(ctx context.Context, jobID uint64) {
	counts, err := w.store.RecomputeCounts(ctx, jobID)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("failed to recompute counts: %v", err))
		return
	}

	status := models.JobStatusCompleted
	if counts.Failed > 0 && counts.Success == 0 {
		status = models.JobStatusFailed
	}
	if err := w.store.UpdateJobStatus(ctx, jobID, status, ""); err != nil {
		w.logger.Error().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to finish job")
		return
	}

	w.logger.Info().
		Int64("job_id", int64(jobID)).
		Str("status", string(status)).
		Int("success", counts.Success).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Msg("Transfer job finished")
}

func (w *Worker) failJob(ctx context.Context, jobID uint64, message string) {
	if err := w.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, message); err != nil {
		w.logger.Error().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to mark job failed")
	}
}

// processItem runs one claimed item through the pipeline with in-submission
// retries. Per-item errors never escape: they end up on the item row.
func (w *Worker) processItem(ctx context.Context, stopCh chan struct{}, snapshot models.TransferSettings, policy *RetryPolicy, item *models.TransferItem) {
	var lastErr error
	for {
		lastErr = w.attemptItem(ctx, snapshot, item)
		if lastErr == nil {
			return
		}

		// Non-retryable failures never touch the counter, so retry_count
		// always means "retries attempted".
		if !IsRetryable(lastErr) {
			w.failItem(ctx, item.ID, lastErr)
			return
		}

		retryCount, err := w.store.IncrementRetry(ctx, item.ID)
		if err != nil {
			w.logger.Error().Err(err).Int64("item_id", int64(item.ID)).Msg("Failed to increment retry")
			w.failItem(ctx, item.ID, lastErr)
			return
		}

		if retryCount >= policy.MaxAttempts {
			w.failItem(ctx, item.ID, lastErr)
			return
		}

		delay := policy.Delay(retryCount)
		w.logger.Warn().
			Int64("item_id", int64(item.ID)).
			Int("retry", retryCount).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Item attempt failed, backing off")

		select {
		case <-stopCh:
			w.failItem(ctx, item.ID, lastErr)
			return
		case <-time.After(delay):
		}
	}
}

func (w *Worker) failItem(ctx context.Context, itemID uint64, cause error) {
	failed := models.ItemStatusFailed
	message := cause.Error()
	patch := models.ItemPatch{Status: &failed, ErrorMessage: &message}
	if err := w.store.UpdateItem(ctx, itemID, patch); err != nil {
		w.logger.Error().Err(err).Int64("item_id", int64(itemID)).Msg("Failed to record item failure")
	}
}

// attemptItem is one pass through download → upload → resolve → metadata.
func (w *Worker) attemptItem(ctx context.Context, snapshot models.TransferSettings, item *models.TransferItem) error {
	localPath := CachePath(w.config.Downloads.Dir, item.SportType, item.LabelID)

	if !CacheHit(localPath) {
		source, err := w.clients.SourceClient(ctx)
		if err != nil {
			return &AuthError{Platform: models.PlatformCoros, Err: err}
		}
		if _, err := source.Download(ctx, item.LabelID, item.SportType, "fit", localPath); err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
	}

	uploading := models.ItemStatusUploading
	if err := w.store.UpdateItem(ctx, item.ID, models.ItemPatch{Status: &uploading, LocalPath: &localPath}); err != nil {
		return fmt.Errorf("failed to mark item uploading: %w", err)
	}

	sink, err := w.clients.SinkClient(ctx)
	if err != nil {
		return &AuthError{Platform: models.PlatformGarmin, Err: err}
	}

	result, err := sink.UploadFIT(ctx, localPath)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	switch {
	case result.Duplicate:
		sinkID := result.SinkID
		if sinkID == "" {
			sinkID = "duplicate"
		}
		return w.completeItem(ctx, item.ID, models.ItemStatusSkipped, sinkID, localPath, models.MetadataStatusSkipped, "")

	case result.Ambiguous:
		if matchedID, ok := w.probe.Confirm(ctx, sink, item.ActivityTime); ok {
			return w.completeItem(ctx, item.ID, models.ItemStatusSkipped, matchedID, localPath, models.MetadataStatusSkipped, "")
		}
		return fmt.Errorf("upload returned empty result and could not be confirmed as duplicate")

	default:
		metadataStatus, metadataError := applyMetadata(ctx, sink, snapshot, item, result.SinkID, w.logger)
		return w.completeItem(ctx, item.ID, models.ItemStatusSuccess, result.SinkID, localPath, metadataStatus, metadataError)
	}
}

func (w *Worker) completeItem(ctx context.Context, itemID uint64, status models.ItemStatus, sinkID, localPath string, metadataStatus models.MetadataStatus, metadataError string) error {
	emptyError := ""
	patch := models.ItemPatch{
		Status:         &status,
		SinkID:         &sinkID,
		LocalPath:      &localPath,
		MetadataStatus: &metadataStatus,
		MetadataError:  &metadataError,
		ErrorMessage:   &emptyError,
	}
	if err := w.store.UpdateItem(ctx, itemID, patch); err != nil {
		return fmt.Errorf("failed to finalize item: %w", err)
	}
	return nil
}

// applyMetadata runs the post-upload metadata operations. Warning-only: the
// item keeps its success status regardless; failures land in metadata_error.
func applyMetadata(ctx context.Context, sink interfaces.SinkClient, snapshot models.TransferSettings, item *models.TransferItem, sinkID string, logger arbor.ILogger) (models.MetadataStatus, string) {
	var errs []string

	title := renderTitle(snapshot, item)
	if title != "" {
		if err := sink.SetActivityName(ctx, sinkID, title); err != nil {
			errs = append(errs, fmt.Sprintf("name: %v", err))
		}
	}

	if snapshot.Privacy.Visibility != "default" {
		if err := sink.SetActivityPrivacy(ctx, sinkID, snapshot.Privacy.Visibility); err != nil {
			errs = append(errs, fmt.Sprintf("privacy: %v", err))
		}
	}

	if snapshot.Gear.Enabled && snapshot.Gear.GearID != "" {
		if err := sink.LinkGear(ctx, snapshot.Gear.GearID, sinkID); err != nil {
			errs = append(errs, fmt.Sprintf("gear: %v", err))
		}
	}

	if len(errs) > 0 {
		joined := strings.Join(errs, "; ")
		logger.Warn().
			Int64("item_id", int64(item.ID)).
			Str("errors", joined).
			Msg("Metadata apply completed with failures")
		return models.MetadataStatusFailed, joined
	}
	return models.MetadataStatusSuccess, ""
}

// renderTitle renders the snapshot's title template from the item's stored
// activity fields, falling back to the source activity name.
func renderTitle(snapshot models.TransferSettings, item *models.TransferItem) string {
	activity := models.SourceActivity{
		LabelID:   item.LabelID,
		SportType: item.SportType,
		Name:      item.ActivityName,
		StartTime: models.FlexString(item.ActivityTime),
	}
	if snapshot.Naming.TitleTemplate == "" {
		return activity.Name
	}
	renderer, err := settings.NewTemplateRenderer(snapshot.Naming.TitleTemplate)
	if err != nil {
		return activity.Name
	}
	return renderer.Render(settings.BuildTemplateContext(activity))
}
