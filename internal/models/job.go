package models

import "time"

// JobStatus is the lifecycle state of a transfer job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for statuses a job never leaves.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobCounts is the aggregate of item statuses, recomputed from items after
// every batch rather than maintained incrementally.
type JobCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Success   int `json:"success"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// TransferJob is one date-range transfer request and the unit of
// configuration closure: the settings snapshot taken at creation never
// changes, so live settings edits only affect jobs created afterwards.
type TransferJob struct {
	ID         uint64    `badgerhold:"key" json:"id"`
	Status     JobStatus `badgerholdIndex:"Status" json:"status"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	SportTypes []string  `json:"sport_types,omitempty"`

	SettingsSnapshot TransferSettings `json:"settings_snapshot"`

	Counts       JobCounts `json:"counts"`
	ErrorMessage string    `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
