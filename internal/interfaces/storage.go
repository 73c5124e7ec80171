package interfaces

import (
	"context"

	"github.com/stridesync/stridesync/internal/models"
)

// JobListOptions filters job listings.
type JobListOptions struct {
	Status string
	Limit  int
}

// ItemListOptions filters item listings within a job.
type ItemListOptions struct {
	Status string
	Limit  int
}

// JobStore is the durable state store for transfer jobs and their items.
// All multi-row mutations are atomic; concurrent item updates from worker
// goroutines serialize inside the store.
type JobStore interface {
	// CreateJob atomically creates one job row plus one pending item per
	// activity, snapshotting the supplied settings into the job.
	CreateJob(ctx context.Context, startDate, endDate string, sportTypes []string, activities []models.SourceActivity, snapshot models.TransferSettings) (uint64, error)

	GetJob(ctx context.Context, jobID uint64) (*models.TransferJob, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.TransferJob, error)
	ListItems(ctx context.Context, jobID uint64, opts *ItemListOptions) ([]*models.TransferItem, error)
	GetItem(ctx context.Context, itemID uint64) (*models.TransferItem, error)

	// PendingItems returns up to limit pending items of the job in ascending
	// id order.
	PendingItems(ctx context.Context, jobID uint64, limit int) ([]*models.TransferItem, error)

	// ClaimItem transitions a pending item to downloading; it fails if the
	// item is no longer pending, which is how duplicate claims are excluded.
	ClaimItem(ctx context.Context, itemID uint64) error

	// UpdateJobStatus sets the status and maintains the started/completed
	// timestamps: started_at on the first transition into running,
	// completed_at on entering any terminal status.
	UpdateJobStatus(ctx context.Context, jobID uint64, status models.JobStatus, errorMessage string) error

	// UpdateItem applies a partial update and bumps updated_at.
	UpdateItem(ctx context.Context, itemID uint64, patch models.ItemPatch) error

	// IncrementRetry bumps the item's retry counter and returns the new value.
	IncrementRetry(ctx context.Context, itemID uint64) (int, error)

	// RecomputeCounts recalculates job counts from item statuses and writes
	// them back atomically.
	RecomputeCounts(ctx context.Context, jobID uint64) (models.JobCounts, error)

	// CancelJob fails all pending items with a cancellation error, marks the
	// job cancelled and recomputes counts. No-op on terminal jobs.
	CancelJob(ctx context.Context, jobID uint64) (bool, error)

	// DeleteJob removes the job's items then the job.
	DeleteJob(ctx context.Context, jobID uint64) (bool, error)
}

// SettingsStore persists the singleton transfer settings document.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.TransferSettings, error)
	SaveSettings(ctx context.Context, settings models.TransferSettings) error
}

// AccountStore persists one credential per platform.
type AccountStore interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, platform string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	DeleteAccount(ctx context.Context, platform string) (bool, error)
}

// HistoryStore records completed downloads.
type HistoryStore interface {
	AddDownload(ctx context.Context, record *models.DownloadRecord) error
	ListDownloads(ctx context.Context, platform string, limit int) ([]*models.DownloadRecord, error)
}

// TaskStore persists recurring sync tasks.
type TaskStore interface {
	SaveTask(ctx context.Context, task *models.SyncTask) error
	GetTask(ctx context.Context, taskID uint64) (*models.SyncTask, error)
	ListTasks(ctx context.Context) ([]*models.SyncTask, error)
	DeleteTask(ctx context.Context, taskID uint64) (bool, error)
}

// StorageManager aggregates the typed stores over one database.
type StorageManager interface {
	Jobs() JobStore
	Settings() SettingsStore
	Accounts() AccountStore
	History() HistoryStore
	Tasks() TaskStore
	Close() error
}
