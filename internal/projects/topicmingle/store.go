// Package topicmingle reads the main site's own tables.
package topicmingle

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/projects"
	"topicmingle/internal/timeframe"
	"topicmingle/internal/tracking"
)

// Store reads sessions, page views and clicks through gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// New returns the main-site project. Events of sessions missing from the
// sessions table are ignored.
func New(db *gorm.DB, logger *slog.Logger) *projects.EventProject {
	return projects.NewEventProject(projects.TopicMingle, NewStore(db), projects.EventProjectOptions{
		KnownSessionsOnly: true,
	}, logger)
}

func (s *Store) ListSessions(ctx context.Context, window timeframe.TimeFrame) ([]aggregation.RawSession, error) {
	var rows []tracking.Session
	q := s.db.WithContext(ctx).Order("last_active DESC")
	if !window.From.IsZero() {
		q = q.Where("last_active >= ?", window.From)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	out := make([]aggregation.RawSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, aggregation.RawSession{
			SessionID:  r.SessionID,
			IPAddress:  r.IPAddress,
			Country:    r.Country,
			Source:     r.Source,
			UserAgent:  r.UserAgent,
			LastActive: r.LastActive,
		})
	}
	return out, nil
}

// ListEvents returns page views followed by clicks, each in time order.
func (s *Store) ListEvents(ctx context.Context, window timeframe.TimeFrame) ([]aggregation.RawEvent, error) {
	db := s.db.WithContext(ctx)

	var views []tracking.PageView
	q := db.Order("viewed_at ASC, id ASC")
	if !window.From.IsZero() {
		q = q.Where("viewed_at >= ?", window.From)
	}
	if err := q.Find(&views).Error; err != nil {
		return nil, fmt.Errorf("query page views: %w", err)
	}

	var clicks []tracking.Click
	q = db.Order("clicked_at ASC, id ASC")
	if !window.From.IsZero() {
		q = q.Where("clicked_at >= ?", window.From)
	}
	if err := q.Find(&clicks).Error; err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}

	out := make([]aggregation.RawEvent, 0, len(views)+len(clicks))
	for _, v := range views {
		out = append(out, aggregation.RawEvent{
			EventID:   v.ID,
			SessionID: v.SessionID,
			EventType: "page_view",
			BlogID:    v.BlogID,
			Country:   v.Country,
			Source:    v.Source,
			PageURL:   v.PageURL,
			CreatedAt: v.ViewedAt,
		})
	}
	for _, c := range clicks {
		out = append(out, aggregation.RawEvent{
			EventID:     c.ID,
			SessionID:   c.SessionID,
			EventType:   "click",
			ButtonID:    c.ButtonID,
			ButtonLabel: c.ButtonLabel,
			Country:     c.Country,
			Source:      c.Source,
			PageURL:     c.PageURL,
			CreatedAt:   c.ClickedAt,
		})
	}
	return out, nil
}

func (s *Store) RelatedSearchLabels(ctx context.Context, ids []string) (map[string]string, error) {
	var rows []tracking.RelatedSearch
	if err := s.db.WithContext(ctx).Select("id", "search_text").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query related searches: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.SearchText
	}
	return out, nil
}

func (s *Store) BlogLabels(ctx context.Context, ids []string) (map[string]string, error) {
	var rows []tracking.Blog
	if err := s.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Title
	}
	return out, nil
}
