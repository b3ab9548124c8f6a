package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"topicmingle/internal/dashboard"
)

// RefreshJob keeps the published report warm.
type RefreshJob struct {
	refresher *dashboard.Refresher
	logger    *slog.Logger
	timeout   time.Duration
}

func NewRefreshJob(refresher *dashboard.Refresher, logger *slog.Logger, timeout time.Duration) *RefreshJob {
	return &RefreshJob{refresher: refresher, logger: logger, timeout: timeout}
}

// Run builds and publishes a report. Losing the publish race to a newer
// refresh is not an error.
func (j *RefreshJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.refresher.Refresh(ctx)
	if errors.Is(err, dashboard.ErrStaleGeneration) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		j.logger.Warn("Report refreshed without project",
			slog.String("project", w.Project),
			slog.String("reason", w.Message))
	}
	j.logger.Debug("Report refreshed",
		slog.Uint64("generation", report.Generation),
		slog.Int("sessions", len(report.Sessions)))
	return nil
}
