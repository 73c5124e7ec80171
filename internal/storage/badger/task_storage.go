package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/stridesync/stridesync/internal/models"
)

// TaskStorage persists recurring sync tasks.
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) *TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) SaveTask(ctx context.Context, task *models.SyncTask) error {
	now := time.Now()
	task.UpdatedAt = now

	if task.ID == 0 {
		task.CreatedAt = now
		if err := s.db.Store().Insert(badgerhold.NextSequence(), task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
	} else {
		if err := s.db.Store().Upsert(task.ID, task); err != nil {
			return fmt.Errorf("failed to update task %d: %w", task.ID, err)
		}
	}

	s.logger.Info().Int64("task_id", int64(task.ID)).Str("name", task.Name).Msg("Saved sync task")
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, taskID uint64) (*models.SyncTask, error) {
	var task models.SyncTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("task not found: %d", taskID)
		}
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return &task, nil
}

func (s *TaskStorage) ListTasks(ctx context.Context) ([]*models.SyncTask, error) {
	var tasks []models.SyncTask
	if err := s.db.Store().Find(&tasks, badgerhold.Where("ID").Gt(uint64(0)).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	result := make([]*models.SyncTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, taskID uint64) (bool, error) {
	if err := s.db.Store().Delete(taskID, &models.SyncTask{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete task %d: %w", taskID, err)
	}

	s.logger.Info().Int64("task_id", int64(taskID)).Msg("Deleted sync task")
	return true, nil
}
