package models

import "time"

// ItemStatus is the per-activity transfer state. Items move
// pending -> downloading -> uploading -> {success|skipped|failed}; a failure
// at an intermediate stage returns to pending while retries remain.
type ItemStatus string

const (
	ItemStatusPending     ItemStatus = "pending"
	ItemStatusDownloading ItemStatus = "downloading"
	ItemStatusUploading   ItemStatus = "uploading"
	ItemStatusSuccess     ItemStatus = "success"
	ItemStatusSkipped     ItemStatus = "skipped"
	ItemStatusFailed      ItemStatus = "failed"
)

// IsTerminal returns true for statuses an item never leaves.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusSkipped || s == ItemStatusFailed
}

// MetadataStatus tracks the post-upload metadata apply stage. It is
// warning-only: a metadata failure never downgrades the item status.
type MetadataStatus string

const (
	MetadataStatusPending MetadataStatus = "pending"
	MetadataStatusSuccess MetadataStatus = "success"
	MetadataStatusFailed  MetadataStatus = "failed"
	MetadataStatusSkipped MetadataStatus = "skipped"
)

// TransferItem is a single activity-transfer attempt belonging to one job.
// Items are mutated only by the worker, except cancellation which is the
// orchestrator's job, and are deleted only as a cascade with their job.
type TransferItem struct {
	ID    uint64 `badgerhold:"key" json:"id"`
	JobID uint64 `badgerholdIndex:"JobID" json:"job_id"`

	LabelID      string `json:"label_id"`
	SportType    int    `json:"sport_type"`
	ActivityName string `json:"activity_name"`
	ActivityTime string `json:"activity_time"`

	Status       ItemStatus `badgerholdIndex:"Status" json:"status"`
	RetryCount   int        `json:"retry_count"`
	LocalPath    string     `json:"local_path,omitempty"`
	SinkID       string     `json:"sink_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	MetadataStatus MetadataStatus `json:"metadata_status"`
	MetadataError  string         `json:"metadata_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemPatch is a partial update applied by the state store. Nil fields are
// left untouched; UpdatedAt is always bumped.
type ItemPatch struct {
	Status         *ItemStatus
	ErrorMessage   *string
	SinkID         *string
	LocalPath      *string
	MetadataStatus *MetadataStatus
	MetadataError  *string
}
