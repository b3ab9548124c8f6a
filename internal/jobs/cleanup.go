package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"topicmingle/internal/tracking"
)

// CleanupJob deletes main-store event rows past the retention period.
type CleanupJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run removes page views, clicks and sessions older than the retention
// period. A non-positive retention keeps everything.
func (j *CleanupJob) Run() error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Event retention disabled, skipping cleanup")
		return nil
	}

	cutoff := j.now().AddDate(0, 0, -j.retentionDays)
	j.logger.Info("Starting cleanup of old events",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := tracking.DeleteEventsBefore(j.dbManager.GetConnection(), j.logger, cutoff)
	if err != nil {
		return err
	}

	j.logger.Info("Cleaned up old events",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.retentionDays))
	return nil
}
