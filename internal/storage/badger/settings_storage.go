package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/stridesync/stridesync/internal/models"
)

const settingsKey = "transfer"

// settingsRecord wraps the singleton settings document under a fixed key.
type settingsRecord struct {
	Key      string `badgerhold:"key"`
	Settings models.TransferSettings
}

// SettingsStorage persists the singleton transfer settings document.
type SettingsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSettingsStorage creates a new SettingsStorage instance
func NewSettingsStorage(db *BadgerDB, logger arbor.ILogger) *SettingsStorage {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

// GetSettings returns the stored settings, or defaults when nothing has been
// saved yet.
func (s *SettingsStorage) GetSettings(ctx context.Context) (*models.TransferSettings, error) {
	var record settingsRecord
	if err := s.db.Store().Get(settingsKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			defaults := models.DefaultTransferSettings()
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := record.Settings.Clone()
	return &settings, nil
}

func (s *SettingsStorage) SaveSettings(ctx context.Context, settings models.TransferSettings) error {
	record := settingsRecord{
		Key:      settingsKey,
		Settings: settings.Clone(),
	}
	if err := s.db.Store().Upsert(settingsKey, &record); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Debug().Msg("Saved transfer settings")
	return nil
}
