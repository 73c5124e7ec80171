package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/stridesync/stridesync/internal/models"
)

// HistoryStorage records completed downloads.
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) *HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) AddDownload(ctx context.Context, record *models.DownloadRecord) error {
	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = time.Now()
	}
	if err := s.db.Store().Insert(badgerhold.NextSequence(), record); err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

func (s *HistoryStorage) ListDownloads(ctx context.Context, platform string, limit int) ([]*models.DownloadRecord, error) {
	var query *badgerhold.Query
	if platform != "" {
		query = badgerhold.Where("Platform").Eq(platform)
	} else {
		query = badgerhold.Where("ID").Gt(uint64(0))
	}
	query = query.SortBy("DownloadedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.DownloadRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}

	result := make([]*models.DownloadRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
