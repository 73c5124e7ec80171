// Package account manages platform credentials and builds authenticated
// platform clients from them.
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/clients/coros"
	"github.com/stridesync/stridesync/internal/clients/garmin"
	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// AccountView is the API shape of an account; the password never leaves the
// service.
type AccountView struct {
	Platform     string    `json:"platform"`
	Email        string    `json:"email"`
	IsConfigured bool      `json:"is_configured"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service stores one credential per platform, encrypted at rest.
type Service struct {
	store   interfaces.AccountStore
	secrets interfaces.SecretStore
	logger  arbor.ILogger
}

// NewService creates an account service.
func NewService(store interfaces.AccountStore, secrets interfaces.SecretStore, logger arbor.ILogger) *Service {
	return &Service{
		store:   store,
		secrets: secrets,
		logger:  logger,
	}
}

// Configure encrypts and saves the credential for a platform.
func (s *Service) Configure(ctx context.Context, platform, email, password string) error {
	if platform != models.PlatformCoros && platform != models.PlatformGarmin {
		return fmt.Errorf("unknown platform: %s", platform)
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	encrypted, err := s.secrets.Encrypt(password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	if err := s.store.SaveAccount(ctx, &models.Account{
		Platform:          platform,
		Email:             email,
		PasswordEncrypted: encrypted,
	}); err != nil {
		return err
	}

	s.logger.Info().Str("platform", platform).Str("email", email).Msg("Configured account")
	return nil
}

// List returns the configured accounts without credentials.
func (s *Service) List(ctx context.Context) ([]AccountView, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]AccountView, len(accounts))
	for i, acc := range accounts {
		views[i] = AccountView{
			Platform:     acc.Platform,
			Email:        acc.Email,
			IsConfigured: true,
			UpdatedAt:    acc.UpdatedAt,
		}
	}
	return views, nil
}

// Remove deletes the credential for a platform.
func (s *Service) Remove(ctx context.Context, platform string) (bool, error) {
	return s.store.DeleteAccount(ctx, platform)
}

// Credentials returns the decrypted credential for a platform.
func (s *Service) Credentials(ctx context.Context, platform string) (email, password string, err error) {
	account, err := s.store.GetAccount(ctx, platform)
	if err != nil {
		return "", "", err
	}
	password, err = s.secrets.Decrypt(account.PasswordEncrypted)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt %s password: %w", platform, err)
	}
	return account.Email, password, nil
}

// ClientFactory builds freshly authenticated platform clients. Clients carry
// non-thread-safe transport state, so callers get a new instance per call.
type ClientFactory struct {
	accounts *Service
	config   *common.Config
	logger   arbor.ILogger
}

// NewClientFactory creates a factory over the account service.
func NewClientFactory(accounts *Service, config *common.Config, logger arbor.ILogger) *ClientFactory {
	return &ClientFactory{
		accounts: accounts,
		config:   config,
		logger:   logger,
	}
}

// SourceClient returns a logged-in COROS client.
func (f *ClientFactory) SourceClient(ctx context.Context) (interfaces.SourceClient, error) {
	email, password, err := f.accounts.Credentials(ctx, models.PlatformCoros)
	if err != nil {
		return nil, err
	}
	client := coros.NewClient(f.logger,
		coros.WithTimeout(f.config.Transfer.RequestTimeout),
		coros.WithRateLimitDelay(f.config.Transfer.RateLimitDelay),
	)
	if err := client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return client, nil
}

// SinkClient returns a logged-in Garmin client.
func (f *ClientFactory) SinkClient(ctx context.Context) (interfaces.SinkClient, error) {
	email, password, err := f.accounts.Credentials(ctx, models.PlatformGarmin)
	if err != nil {
		return nil, err
	}
	client := garmin.NewClient(f.logger,
		garmin.WithTimeout(f.config.Transfer.RequestTimeout),
		garmin.WithRateLimitDelay(f.config.Transfer.RateLimitDelay),
	)
	if err := client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return client, nil
}

// Verify checks that the stored credential for a platform still logs in.
func (f *ClientFactory) Verify(ctx context.Context, platform string) error {
	switch platform {
	case models.PlatformCoros:
		_, err := f.SourceClient(ctx)
		return err
	case models.PlatformGarmin:
		_, err := f.SinkClient(ctx)
		return err
	default:
		return fmt.Errorf("unknown platform: %s", platform)
	}
}
