// Package scheduler runs recurring sync tasks that create transfer jobs on
// a cron cadence.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
	"github.com/stridesync/stridesync/internal/services/transfer"
)

// Service schedules enabled sync tasks. Each firing creates a transfer job
// covering the task's lookback window and queues it on the worker.
type Service struct {
	tasks        interfaces.TaskStore
	orchestrator *transfer.Orchestrator
	worker       *transfer.Worker
	logger       arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uint64]cron.EntryID
}

// NewService creates a scheduler over the task store.
func NewService(tasks interfaces.TaskStore, orchestrator *transfer.Orchestrator, worker *transfer.Worker, logger arbor.ILogger) *Service {
	return &Service{
		tasks:        tasks,
		orchestrator: orchestrator,
		worker:       worker,
		logger:       logger,
		cron:         cron.New(),
		entries:      map[uint64]cron.EntryID{},
	}
}

// Start loads the enabled tasks and begins the cron loop.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for a running firing to finish.
func (s *Service) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Reload re-registers all enabled tasks, dropping removed or disabled ones.
func (s *Service) Reload(ctx context.Context) error {
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for taskID, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, taskID)
	}

	for _, task := range tasks {
		if !task.Enabled {
			continue
		}
		taskID := task.ID
		entryID, err := s.cron.AddFunc(task.CronExpression, func() {
			s.runTask(taskID)
		})
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int64("task_id", int64(task.ID)).
				Str("cron", task.CronExpression).
				Msg("Skipping task with invalid cron expression")
			continue
		}
		s.entries[task.ID] = entryID
		s.logger.Info().
			Int64("task_id", int64(task.ID)).
			Str("name", task.Name).
			Str("cron", task.CronExpression).
			Msg("Scheduled sync task")
	}
	return nil
}

// ValidateCron reports whether the expression parses.
func ValidateCron(expression string) error {
	_, err := cron.ParseStandard(expression)
	return err
}

// runTask fires one task: create a job over the lookback window and queue it.
func (s *Service) runTask(taskID uint64) {
	ctx := context.Background()

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("task_id", int64(taskID)).Msg("Sync task vanished, skipping run")
		return
	}

	lookback := task.LookbackDays
	if lookback < 1 {
		lookback = 1
	}
	end := time.Now()
	start := end.AddDate(0, 0, -lookback)

	jobID, err := s.orchestrator.CreateJob(ctx,
		start.Format("2006-01-02"), end.Format("2006-01-02"), task.SportTypes)
	if err != nil {
		s.logger.Error().Err(err).Int64("task_id", int64(taskID)).Msg("Scheduled job creation failed")
		return
	}

	if err := s.worker.ProcessJob(ctx, jobID); err != nil {
		s.logger.Error().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to queue scheduled job")
		return
	}

	now := time.Now()
	task.LastRun = &now
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		s.logger.Warn().Err(err).Int64("task_id", int64(taskID)).Msg("Failed to record task run time")
	}

	s.logger.Info().
		Int64("task_id", int64(taskID)).
		Int64("job_id", int64(jobID)).
		Msg("Scheduled sync task fired")
}

// SaveTask validates and persists a task, then reloads the schedule.
func (s *Service) SaveTask(ctx context.Context, task *models.SyncTask) error {
	if task.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if err := ValidateCron(task.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", task.CronExpression, err)
	}
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// DeleteTask removes a task and reloads the schedule.
func (s *Service) DeleteTask(ctx context.Context, taskID uint64) (bool, error) {
	deleted, err := s.tasks.DeleteTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	if deleted {
		if err := s.Reload(ctx); err != nil {
			return true, err
		}
	}
	return deleted, nil
}

// ListTasks returns all tasks.
func (s *Service) ListTasks(ctx context.Context) ([]*models.SyncTask, error) {
	return s.tasks.ListTasks(ctx)
}
