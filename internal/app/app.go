// Package app wires configuration, storage, services and handlers into one
// application instance.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/handlers"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/secrets"
	"github.com/stridesync/stridesync/internal/services/account"
	"github.com/stridesync/stridesync/internal/services/download"
	"github.com/stridesync/stridesync/internal/services/scheduler"
	"github.com/stridesync/stridesync/internal/services/settings"
	"github.com/stridesync/stridesync/internal/services/transfer"
	badgerstore "github.com/stridesync/stridesync/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Services
	SecretStore      interfaces.SecretStore
	AccountService   *account.Service
	ClientFactory    *account.ClientFactory
	SettingsService  *settings.Service
	Orchestrator     *transfer.Orchestrator
	Worker           *transfer.Worker
	DownloadService  *download.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	JobHandler      *handlers.JobHandler
	WorkerHandler   *handlers.WorkerHandler
	SettingsHandler *handlers.SettingsHandler
	AccountHandler  *handlers.AccountHandler
	DownloadHandler *handlers.DownloadHandler
	TaskHandler     *handlers.TaskHandler
	GearHandler     *handlers.GearHandler
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstore.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	secretStore, err := secrets.NewStore(cfg.Secrets.EncryptionKey)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}
	app.SecretStore = secretStore

	app.AccountService = account.NewService(storageManager.Accounts(), secretStore, logger)
	app.ClientFactory = account.NewClientFactory(app.AccountService, cfg, logger)
	app.SettingsService = settings.NewService(storageManager.Settings(), logger)

	app.Orchestrator = transfer.NewOrchestrator(storageManager.Jobs(), storageManager.Settings(), app.ClientFactory, logger)
	app.Worker = transfer.NewWorker(storageManager.Jobs(), app.ClientFactory, cfg, logger)
	transfer.SetGlobalWorker(app.Worker)
	app.Worker.Start()

	app.DownloadService = download.NewService(app.ClientFactory, storageManager.History(), cfg, logger)

	app.SchedulerService = scheduler.NewService(storageManager.Tasks(), app.Orchestrator, app.Worker, logger)
	if err := app.SchedulerService.Start(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Scheduler failed to start; recurring tasks disabled")
	}

	app.APIHandler = handlers.NewAPIHandler(logger)
	app.JobHandler = handlers.NewJobHandler(app.Orchestrator, storageManager.Jobs(), logger)
	app.WorkerHandler = handlers.NewWorkerHandler(logger)
	app.SettingsHandler = handlers.NewSettingsHandler(app.SettingsService, logger)
	app.AccountHandler = handlers.NewAccountHandler(app.AccountService, app.ClientFactory, logger)
	app.DownloadHandler = handlers.NewDownloadHandler(app.DownloadService, logger)
	app.TaskHandler = handlers.NewTaskHandler(app.SchedulerService, logger)
	app.GearHandler = handlers.NewGearHandler(app.ClientFactory, logger)

	logger.Info().Msg("Application initialized")
	return app, nil
}

// Close shuts the components down in reverse dependency order.
func (a *App) Close() {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	transfer.ResetGlobalWorker()

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
