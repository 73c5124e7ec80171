package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// CancelledItemError is the distinguished error recorded on pending items
// when their job is cancelled.
const CancelledItemError = "cancelled"

// JobStorage implements the JobStore interface for Badger. Multi-row
// mutations are serialized behind a store-level mutex; the throughput target
// is a handful of worker goroutines, so single-writer is acceptable.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, startDate, endDate string, sportTypes []string, activities []models.SourceActivity, snapshot models.TransferSettings) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &models.TransferJob{
		Status:           models.JobStatusPending,
		StartDate:        startDate,
		EndDate:          endDate,
		SportTypes:       sportTypes,
		SettingsSnapshot: snapshot.Clone(),
		Counts:           models.JobCounts{Total: len(activities)},
		CreatedAt:        now,
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), job); err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}

	for i := range activities {
		a := activities[i]
		item := &models.TransferItem{
			JobID:          job.ID,
			LabelID:        a.LabelID,
			SportType:      a.SportType,
			ActivityName:   a.Name,
			ActivityTime:   string(a.StartTime),
			Status:         models.ItemStatusPending,
			MetadataStatus: models.MetadataStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.db.Store().Insert(badgerhold.NextSequence(), item); err != nil {
			// Roll back the partial job so a failed creation leaves nothing behind.
			_ = s.db.Store().DeleteMatching(&models.TransferItem{}, badgerhold.Where("JobID").Eq(job.ID))
			_ = s.db.Store().Delete(job.ID, &models.TransferJob{})
			return 0, fmt.Errorf("failed to create item for activity %s: %w", a.LabelID, err)
		}
	}

	s.logger.Info().
		Int64("job_id", int64(job.ID)).
		Int("items", len(activities)).
		Msg("Created transfer job")

	return job.ID, nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID uint64) (*models.TransferJob, error) {
	var job models.TransferJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %d", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.TransferJob, error) {
	query := badgerhold.Where("ID").Gt(uint64(0))

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(models.JobStatus(opts.Status))
		}
		if opts.Limit > 0 {
			query = query.SortBy("CreatedAt").Reverse().Limit(opts.Limit)
		} else {
			query = query.SortBy("CreatedAt").Reverse()
		}
	} else {
		query = query.SortBy("CreatedAt").Reverse()
	}

	var jobs []models.TransferJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.TransferJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) ListItems(ctx context.Context, jobID uint64, opts *interfaces.ItemListOptions) ([]*models.TransferItem, error) {
	query := badgerhold.Where("JobID").Eq(jobID)

	if opts != nil && opts.Status != "" {
		query = query.And("Status").Eq(models.ItemStatus(opts.Status))
	}
	query = query.SortBy("ID")
	if opts != nil && opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var items []models.TransferItem
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	result := make([]*models.TransferItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *JobStorage) GetItem(ctx context.Context, itemID uint64) (*models.TransferItem, error) {
	var item models.TransferItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("item not found: %d", itemID)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (s *JobStorage) PendingItems(ctx context.Context, jobID uint64, limit int) ([]*models.TransferItem, error) {
	return s.ListItems(ctx, jobID, &interfaces.ItemListOptions{
		Status: string(models.ItemStatusPending),
		Limit:  limit,
	})
}

func (s *JobStorage) ClaimItem(ctx context.Context, itemID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.TransferItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		return fmt.Errorf("failed to get item %d: %w", itemID, err)
	}
	if item.Status != models.ItemStatusPending {
		return fmt.Errorf("item %d is not pending (status: %s)", itemID, item.Status)
	}

	item.Status = models.ItemStatusDownloading
	item.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(item.ID, &item); err != nil {
		return fmt.Errorf("failed to claim item %d: %w", itemID, err)
	}
	return nil
}

func (s *JobStorage) UpdateJobStatus(ctx context.Context, jobID uint64, status models.JobStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateJobStatusLocked(jobID, status, errorMessage)
}

func (s *JobStorage) updateJobStatusLocked(jobID uint64, status models.JobStatus, errorMessage string) error {
	var job models.TransferJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		return fmt.Errorf("failed to get job %d: %w", jobID, err)
	}

	now := time.Now()
	job.Status = status
	if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}
	if status == models.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to update job %d status: %w", jobID, err)
	}

	s.logger.Debug().
		Int64("job_id", int64(jobID)).
		Str("status", string(status)).
		Msg("Updated job status")
	return nil
}

func (s *JobStorage) UpdateItem(ctx context.Context, itemID uint64, patch models.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.TransferItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		return fmt.Errorf("failed to get item %d: %w", itemID, err)
	}

	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		item.ErrorMessage = *patch.ErrorMessage
	}
	if patch.SinkID != nil {
		item.SinkID = *patch.SinkID
	}
	if patch.LocalPath != nil {
		item.LocalPath = *patch.LocalPath
	}
	if patch.MetadataStatus != nil {
		item.MetadataStatus = *patch.MetadataStatus
	}
	if patch.MetadataError != nil {
		item.MetadataError = *patch.MetadataError
	}
	item.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(item.ID, &item); err != nil {
		return fmt.Errorf("failed to update item %d: %w", itemID, err)
	}
	return nil
}

func (s *JobStorage) IncrementRetry(ctx context.Context, itemID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.TransferItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		return 0, fmt.Errorf("failed to get item %d: %w", itemID, err)
	}

	item.RetryCount++
	item.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(item.ID, &item); err != nil {
		return 0, fmt.Errorf("failed to increment retry for item %d: %w", itemID, err)
	}
	return item.RetryCount, nil
}

func (s *JobStorage) RecomputeCounts(ctx context.Context, jobID uint64) (models.JobCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recomputeCountsLocked(jobID)
}

func (s *JobStorage) recomputeCountsLocked(jobID uint64) (models.JobCounts, error) {
	var items []models.TransferItem
	if err := s.db.Store().Find(&items, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return models.JobCounts{}, fmt.Errorf("failed to load items for job %d: %w", jobID, err)
	}

	counts := models.JobCounts{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case models.ItemStatusSuccess:
			counts.Success++
		case models.ItemStatusSkipped:
			counts.Skipped++
		case models.ItemStatusFailed:
			counts.Failed++
		}
	}
	counts.Completed = counts.Success + counts.Skipped + counts.Failed

	var job models.TransferJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		return counts, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}
	job.Counts = counts
	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return counts, fmt.Errorf("failed to write counts for job %d: %w", jobID, err)
	}

	return counts, nil
}

func (s *JobStorage) CancelJob(ctx context.Context, jobID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.TransferJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}

	if job.Status.IsTerminal() {
		s.logger.Warn().
			Int64("job_id", int64(jobID)).
			Str("status", string(job.Status)).
			Msg("Job cannot be cancelled")
		return false, nil
	}

	// Fail the pending items with the distinguished cancellation error.
	var items []models.TransferItem
	if err := s.db.Store().Find(&items, badgerhold.Where("JobID").Eq(jobID).And("Status").Eq(models.ItemStatusPending)); err != nil {
		return false, fmt.Errorf("failed to load pending items for job %d: %w", jobID, err)
	}
	now := time.Now()
	for i := range items {
		items[i].Status = models.ItemStatusFailed
		items[i].ErrorMessage = CancelledItemError
		items[i].UpdatedAt = now
		if err := s.db.Store().Upsert(items[i].ID, &items[i]); err != nil {
			return false, fmt.Errorf("failed to cancel item %d: %w", items[i].ID, err)
		}
	}

	if err := s.updateJobStatusLocked(jobID, models.JobStatusCancelled, ""); err != nil {
		return false, err
	}

	if _, err := s.recomputeCountsLocked(jobID); err != nil {
		return false, err
	}

	s.logger.Info().Int64("job_id", int64(jobID)).Msg("Cancelled job")
	return true, nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Store().DeleteMatching(&models.TransferItem{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return false, fmt.Errorf("failed to delete items for job %d: %w", jobID, err)
	}

	if err := s.db.Store().Delete(jobID, &models.TransferJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete job %d: %w", jobID, err)
	}

	s.logger.Info().Int64("job_id", int64(jobID)).Msg("Deleted job")
	return true, nil
}
