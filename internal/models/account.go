package models

import "time"

// Platform identifies a vendor account slot. One account per platform.
const (
	PlatformCoros  = "coros"
	PlatformGarmin = "garmin"
)

// Account holds a platform credential. The password is stored encrypted at
// rest; only the secret store decrypts it.
type Account struct {
	Platform          string    `badgerhold:"key" json:"platform"`
	Email             string    `json:"email"`
	PasswordEncrypted string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DownloadRecord is one entry of download history.
type DownloadRecord struct {
	ID           uint64    `badgerhold:"key" json:"id"`
	Platform     string    `badgerholdIndex:"Platform" json:"platform"`
	ActivityID   string    `json:"activity_id"`
	ActivityType string    `json:"activity_type,omitempty"`
	FilePath     string    `json:"file_path"`
	FileFormat   string    `json:"file_format"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// SyncTask is a cron-driven recurring transfer. Each run creates a transfer
// job covering the trailing LookbackDays.
type SyncTask struct {
	ID             uint64     `badgerhold:"key" json:"id"`
	Name           string     `json:"name"`
	Enabled        bool       `json:"enabled"`
	CronExpression string     `json:"cron_expression"`
	LookbackDays   int        `json:"lookback_days"`
	SportTypes     []string   `json:"sport_types,omitempty"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
