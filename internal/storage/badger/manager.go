package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
)

// Manager aggregates the typed stores over one BadgerDB instance.
type Manager struct {
	db       *BadgerDB
	jobs     *JobStorage
	settings *SettingsStorage
	accounts *AccountStorage
	history  *HistoryStorage
	tasks    *TaskStorage
}

// NewManager opens the database and wires the typed stores.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		jobs:     NewJobStorage(db, logger),
		settings: NewSettingsStorage(db, logger),
		accounts: NewAccountStorage(db, logger),
		history:  NewHistoryStorage(db, logger),
		tasks:    NewTaskStorage(db, logger),
	}, nil
}

func (m *Manager) Jobs() interfaces.JobStore          { return m.jobs }
func (m *Manager) Settings() interfaces.SettingsStore { return m.settings }
func (m *Manager) Accounts() interfaces.AccountStore  { return m.accounts }
func (m *Manager) History() interfaces.HistoryStore   { return m.history }
func (m *Manager) Tasks() interfaces.TaskStore        { return m.tasks }

func (m *Manager) Close() error {
	return m.db.Close()
}
