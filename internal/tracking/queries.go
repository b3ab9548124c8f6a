package tracking

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Totals are the raw row counts of the main site.
type Totals struct {
	Sessions  int64 `json:"sessions"`
	PageViews int64 `json:"page_views"`
	Clicks    int64 `json:"clicks"`
}

// GetTotals counts sessions, page views and clicks.
func GetTotals(db *gorm.DB) (Totals, error) {
	var totals Totals
	if err := db.Model(&Session{}).Count(&totals.Sessions).Error; err != nil {
		return totals, fmt.Errorf("count sessions: %w", err)
	}
	if err := db.Model(&PageView{}).Count(&totals.PageViews).Error; err != nil {
		return totals, fmt.Errorf("count page views: %w", err)
	}
	if err := db.Model(&Click{}).Count(&totals.Clicks).Error; err != nil {
		return totals, fmt.Errorf("count clicks: %w", err)
	}
	return totals, nil
}

// ListEmailCaptures returns captures newest first.
func ListEmailCaptures(db *gorm.DB, limit int) ([]EmailCapture, error) {
	var captures []EmailCapture
	q := db.Order("captured_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&captures).Error; err != nil {
		return nil, fmt.Errorf("list email captures: %w", err)
	}
	return captures, nil
}

const cleanupBatchSize = 1000

// DeleteEventsBefore removes page views, clicks and idle sessions older than
// cutoff, in batches so writers are not blocked for long.
func DeleteEventsBefore(db *gorm.DB, logger *slog.Logger, cutoff time.Time) (int64, error) {
	targets := []struct {
		model  any
		table  string
		column string
	}{
		{&PageView{}, "page_views", "viewed_at"},
		{&Click{}, "clicks", "clicked_at"},
		{&Session{}, "sessions", "last_active"},
	}

	var total int64
	for _, target := range targets {
		for {
			var ids []string
			if err := db.Table(target.table).
				Where(target.column+" < ?", cutoff).
				Limit(cleanupBatchSize).
				Pluck("id", &ids).Error; err != nil {
				return total, fmt.Errorf("select old %s: %w", target.table, err)
			}
			if len(ids) == 0 {
				break
			}

			result := db.Where("id IN ?", ids).Delete(target.model)
			if result.Error != nil {
				logger.Error("Failed to delete old rows",
					slog.String("table", target.table),
					slog.Any("error", result.Error),
					slog.Int64("deleted_so_far", total))
				return total, result.Error
			}
			total += result.RowsAffected

			if len(ids) < cleanupBatchSize {
				break
			}
		}
	}
	return total, nil
}
