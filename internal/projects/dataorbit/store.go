// Package dataorbit reads DataOrbitZone's unified analytics table from
// Postgres.
package dataorbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/projects"
	"topicmingle/internal/timeframe"
)

const (
	eventsQuery = `SELECT id::text, session_id, event_type, button_id, button_label,
       related_search_id::text, blog_id::text, ip_address, country, device, source,
       page_url, created_at
FROM analytics
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
ORDER BY created_at ASC, id ASC`

	relatedSearchesQuery = `SELECT id::text, search_text FROM related_searches WHERE id::text = ANY($1)`
	blogsQuery           = `SELECT id::text, title FROM blogs WHERE id::text = ANY($1)`
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads one DataOrbitZone database.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// New returns the DataOrbitZone project. Its tracker writes "button" event
// types for clicks.
func New(db Querier, logger *slog.Logger) *projects.EventProject {
	return projects.NewEventProject(projects.DataOrbit, NewStore(db), projects.EventProjectOptions{
		Classify: aggregation.ClassifyOptions{ButtonIsClick: true},
	}, logger)
}

// Connect opens and verifies a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataorbit dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataorbit pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping dataorbit: %w", err)
	}
	return pool, nil
}

// ListSessions returns nothing: sessions exist only as keys on analytics
// rows.
func (s *Store) ListSessions(context.Context, timeframe.TimeFrame) ([]aggregation.RawSession, error) {
	return nil, nil
}

type analyticsRow struct {
	ID              *string
	SessionID       *string
	EventType       *string
	ButtonID        *string
	ButtonLabel     *string
	RelatedSearchID *string
	BlogID          *string
	IPAddress       *string
	Country         *string
	Device          *string
	Source          *string
	PageURL         *string
	CreatedAt       *time.Time
}

func (s *Store) ListEvents(ctx context.Context, window timeframe.TimeFrame) ([]aggregation.RawEvent, error) {
	var since *time.Time
	if !window.From.IsZero() {
		since = &window.From
	}

	rows, err := s.db.Query(ctx, eventsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	var out []aggregation.RawEvent
	for rows.Next() {
		var r analyticsRow
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.EventType, &r.ButtonID, &r.ButtonLabel,
			&r.RelatedSearchID, &r.BlogID, &r.IPAddress, &r.Country, &r.Device, &r.Source,
			&r.PageURL, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analytics row: %w", err)
		}
		out = append(out, r.toRawEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics: %w", err)
	}
	return out, nil
}

// toRawEvent maps a row, keying anonymous rows by IP.
func (r analyticsRow) toRawEvent() aggregation.RawEvent {
	ev := aggregation.RawEvent{
		EventID:         str(r.ID),
		SessionID:       str(r.SessionID),
		EventType:       str(r.EventType),
		ButtonID:        str(r.ButtonID),
		ButtonLabel:     str(r.ButtonLabel),
		RelatedSearchID: str(r.RelatedSearchID),
		BlogID:          str(r.BlogID),
		IPAddress:       str(r.IPAddress),
		Country:         str(r.Country),
		Device:          str(r.Device),
		Source:          str(r.Source),
		PageURL:         str(r.PageURL),
	}
	if r.CreatedAt != nil {
		ev.CreatedAt = *r.CreatedAt
	}
	if ev.SessionID == "" {
		ip := ev.IPAddress
		if ip == "" {
			ip = aggregation.DefaultIP
		}
		ev.SessionID = "anon-" + ip
	}
	return ev
}

func (s *Store) RelatedSearchLabels(ctx context.Context, ids []string) (map[string]string, error) {
	return s.labels(ctx, relatedSearchesQuery, ids)
}

func (s *Store) BlogLabels(ctx context.Context, ids []string) (map[string]string, error) {
	return s.labels(ctx, blogsQuery, ids)
}

func (s *Store) labels(ctx context.Context, query string, ids []string) (map[string]string, error) {
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id string
		var label *string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		if label != nil {
			out[id] = *label
		}
	}
	return out, rows.Err()
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
