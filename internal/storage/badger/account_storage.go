package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/stridesync/stridesync/internal/models"
)

// AccountStorage persists one credential per platform, keyed by the platform
// name.
type AccountStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAccountStorage creates a new AccountStorage instance
func NewAccountStorage(db *BadgerDB, logger arbor.ILogger) *AccountStorage {
	return &AccountStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AccountStorage) SaveAccount(ctx context.Context, account *models.Account) error {
	now := time.Now()
	var existing models.Account
	if err := s.db.Store().Get(account.Platform, &existing); err == nil {
		account.CreatedAt = existing.CreatedAt
	} else {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if err := s.db.Store().Upsert(account.Platform, account); err != nil {
		return fmt.Errorf("failed to save account for %s: %w", account.Platform, err)
	}

	s.logger.Info().Str("platform", account.Platform).Msg("Saved account")
	return nil
}

func (s *AccountStorage) GetAccount(ctx context.Context, platform string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Store().Get(platform, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("no account configured for platform: %s", platform)
		}
		return nil, fmt.Errorf("failed to get account for %s: %w", platform, err)
	}
	return &account, nil
}

func (s *AccountStorage) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []models.Account
	if err := s.db.Store().Find(&accounts, badgerhold.Where("Platform").Ne("").SortBy("Platform")); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := make([]*models.Account, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}

func (s *AccountStorage) DeleteAccount(ctx context.Context, platform string) (bool, error) {
	if err := s.db.Store().Delete(platform, &models.Account{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete account for %s: %w", platform, err)
	}

	s.logger.Info().Str("platform", platform).Msg("Deleted account")
	return true, nil
}
