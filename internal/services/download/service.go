// Package download bulk-fetches activity files outside the transfer
// pipeline and records them in the download history.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// Result summarizes one bulk download run.
type Result struct {
	Total      int      `json:"total"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Service downloads source activities to the cache directory.
type Service struct {
	clients interfaces.ClientFactory
	history interfaces.HistoryStore
	config  *common.Config
	logger  arbor.ILogger
}

// NewService creates a download service.
func NewService(clients interfaces.ClientFactory, history interfaces.HistoryStore, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		clients: clients,
		history: history,
		config:  config,
		logger:  logger,
	}
}

// Download fetches all source activities in the range to disk. Files already
// present are skipped; per-activity failures are collected, not fatal.
func (s *Service) Download(ctx context.Context, startDate, endDate time.Time, format string, sportTypes []string) (*Result, error) {
	if format == "" {
		format = "fit"
	}

	source, err := s.clients.SourceClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("source authentication failed: %w", err)
	}

	activities, err := source.ListActivities(ctx, startDate, endDate, sportTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate activities: %w", err)
	}

	result := &Result{Total: len(activities)}
	for _, activity := range activities {
		savePath := filepath.Join(s.config.Downloads.Dir, models.PlatformCoros,
			strconv.Itoa(activity.SportType), activity.LabelID+"."+format)

		if info, err := os.Stat(savePath); err == nil && info.Size() > 0 {
			result.Skipped++
			continue
		}

		if _, err := source.Download(ctx, activity.LabelID, activity.SportType, format, savePath); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", activity.LabelID, err))
			s.logger.Warn().Err(err).Str("label_id", activity.LabelID).Msg("Activity download failed")
			continue
		}

		result.Downloaded++
		if err := s.history.AddDownload(ctx, &models.DownloadRecord{
			Platform:     models.PlatformCoros,
			ActivityID:   activity.LabelID,
			ActivityType: models.SportName(activity.SportType),
			FilePath:     savePath,
			FileFormat:   format,
		}); err != nil {
			s.logger.Warn().Err(err).Str("label_id", activity.LabelID).Msg("Failed to record download history")
		}
	}

	s.logger.Info().
		Int("total", result.Total).
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Bulk download finished")

	return result, nil
}

// History lists past downloads, optionally filtered by platform.
func (s *Service) History(ctx context.Context, platform string, limit int) ([]*models.DownloadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.history.ListDownloads(ctx, platform, limit)
}
