package interfaces

import (
	"context"
	"time"

	"github.com/stridesync/stridesync/internal/models"
)

// UploadResult is the sink's answer to an upload. Exactly one of the three
// shapes holds: an accepted id, an explicit duplicate, or an ambiguous empty
// response (neither accepted nor rejected) that the caller must resolve with
// the duplicate probe.
type UploadResult struct {
	SinkID    string
	Duplicate bool
	Ambiguous bool
}

// SourceClient is the origin platform. Implementations are not safe for
// concurrent use; the worker constructs one per in-flight item.
type SourceClient interface {
	Login(ctx context.Context, email, password string) error

	// ListActivities enumerates activities in the date range, paginating
	// internally with a rate-limit gap between pages and stopping on a short
	// or empty page. Dates are inclusive.
	ListActivities(ctx context.Context, startDate, endDate time.Time, sportTypes []string) ([]models.SourceActivity, error)

	// Download fetches one activity file to savePath. Format is one of
	// "fit", "tcx", "gpx". Returns the written path.
	Download(ctx context.Context, labelID string, sportType int, format string, savePath string) (string, error)
}

// SinkClient is the destination platform. Implementations are not safe for
// concurrent use; the worker constructs one per in-flight item.
type SinkClient interface {
	Login(ctx context.Context, email, password string) error

	// UploadFIT uploads an activity file and interprets the sink's import
	// result per UploadResult.
	UploadFIT(ctx context.Context, path string) (UploadResult, error)

	// ListActivities is consumed by the duplicate probe.
	ListActivities(ctx context.Context, startDate, endDate time.Time) ([]models.SinkActivity, error)

	SetActivityName(ctx context.Context, activityID, name string) error
	SetActivityDescription(ctx context.Context, activityID, description string) error
	SetActivityPrivacy(ctx context.Context, activityID, visibility string) error
	LinkGear(ctx context.Context, gearID, activityID string) error
	ListGear(ctx context.Context, limit int) ([]models.GearEntry, error)
}

// ClientFactory builds authenticated clients. The worker calls it once per
// in-flight item because client transports carry non-thread-safe state.
type ClientFactory interface {
	SourceClient(ctx context.Context) (SourceClient, error)
	SinkClient(ctx context.Context) (SinkClient, error)
}

// SecretStore encrypts credentials at rest.
type SecretStore interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
