package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// Orchestrator owns job lifecycle: creation (enumeration + snapshot),
// cancellation, deletion, and metadata reruns.
type Orchestrator struct {
	store    interfaces.JobStore
	settings interfaces.SettingsStore
	clients  interfaces.ClientFactory
	logger   arbor.ILogger
}

// NewOrchestrator builds a job orchestrator.
func NewOrchestrator(store interfaces.JobStore, settingsStore interfaces.SettingsStore, clients interfaces.ClientFactory, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		settings: settingsStore,
		clients:  clients,
		logger:   logger,
	}
}

// CreateJob authenticates both platforms, enumerates source activities over
// the date range, snapshots the current settings, and writes the job with
// its pending items. Both logins are required up front so jobs that cannot
// complete are never created.
func (o *Orchestrator) CreateJob(ctx context.Context, startDate, endDate string, sportTypes []string) (uint64, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, time.Local)
	if err != nil {
		return 0, Permanent(fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", startDate))
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, time.Local)
	if err != nil {
		return 0, Permanent(fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", endDate))
	}
	if end.Before(start) {
		return 0, Permanent(fmt.Errorf("end_date is before start_date"))
	}

	source, err := o.clients.SourceClient(ctx)
	if err != nil {
		return 0, &AuthError{Platform: models.PlatformCoros, Err: err}
	}
	if _, err := o.clients.SinkClient(ctx); err != nil {
		return 0, &AuthError{Platform: models.PlatformGarmin, Err: err}
	}

	activities, err := source.ListActivities(ctx, start, end, sportTypes)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate source activities: %w", err)
	}

	snapshot, err := o.settings.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings for snapshot: %w", err)
	}

	jobID, err := o.store.CreateJob(ctx, startDate, endDate, sportTypes, activities, *snapshot)
	if err != nil {
		return 0, err
	}

	o.logger.Info().
		Int64("job_id", int64(jobID)).
		Int("activities", len(activities)).
		Str("start", startDate).
		Str("end", endDate).
		Msg("Created transfer job")

	return jobID, nil
}

// CancelJob fails the pending items and marks the job cancelled.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID uint64) (bool, error) {
	return o.store.CancelJob(ctx, jobID)
}

// DeleteJob removes the job and its items.
func (o *Orchestrator) DeleteJob(ctx context.Context, jobID uint64) (bool, error) {
	return o.store.DeleteJob(ctx, jobID)
}

// RerunMetadata reapplies the metadata stage for every item whose metadata
// apply failed, using the job's original settings snapshot and the recorded
// sink id. Returns the number of items reprocessed.
func (o *Orchestrator) RerunMetadata(ctx context.Context, jobID uint64) (int, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	items, err := o.store.ListItems(ctx, jobID, nil)
	if err != nil {
		return 0, err
	}

	var candidates []*models.TransferItem
	for _, item := range items {
		if item.MetadataStatus == models.MetadataStatusFailed && item.SinkID != "" && item.SinkID != "duplicate" {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	sink, err := o.clients.SinkClient(ctx)
	if err != nil {
		return 0, &AuthError{Platform: models.PlatformGarmin, Err: err}
	}

	reprocessed := 0
	for _, item := range candidates {
		metadataStatus, metadataError := applyMetadata(ctx, sink, job.SettingsSnapshot, item, item.SinkID, o.logger)
		patch := models.ItemPatch{
			MetadataStatus: &metadataStatus,
			MetadataError:  &metadataError,
		}
		if err := o.store.UpdateItem(ctx, item.ID, patch); err != nil {
			o.logger.Error().Err(err).Int64("item_id", int64(item.ID)).Msg("Failed to record metadata rerun")
			continue
		}
		reprocessed++
	}

	o.logger.Info().
		Int64("job_id", int64(jobID)).
		Int("reprocessed", reprocessed).
		Msg("Metadata rerun finished")

	return reprocessed, nil
}
