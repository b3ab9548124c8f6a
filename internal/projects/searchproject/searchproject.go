// Package searchproject reads SearchProject's pre-aggregated per-session
// analytics rows from ClickHouse.
package searchproject

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/projects"
	"topicmingle/internal/timeframe"
)

const (
	fallbackSearchTerm  = "results"
	fallbackButtonLabel = "result-click"
)

// Columns are cast so the scan types stay fixed whatever the table's
// integer widths are.
const analyticsQuery = `SELECT
    toString(id) AS id,
    ifNull(session_id, '') AS session_id,
    ifNull(device, '') AS device,
    ifNull(ip_address, '') AS ip_address,
    ifNull(country, '') AS country,
    ifNull(source, '') AS source,
    toUInt32(ifNull(time_spent, 0)) AS time_spent,
    timestamp,
    toUInt32(ifNull(page_views, 0)) AS page_views,
    toUInt32(ifNull(unique_pages, 0)) AS unique_pages,
    toUInt32(ifNull(clicks, 0)) AS clicks,
    toUInt32(ifNull(unique_clicks, 0)) AS unique_clicks,
    page_urls,
    button_ids,
    toUInt32(ifNull(related_searches, 0)) AS related_searches,
    toUInt32(ifNull(result_clicks, 0)) AS result_clicks,
    toUInt32(ifNull(unique_result_clicks, 0)) AS unique_result_clicks,
    ifNull(search_results, '') AS search_results,
    ifNull(button_interactions, '') AS button_interactions
FROM analytics
WHERE timestamp >= ?
ORDER BY timestamp DESC`

// Row is one pre-aggregated session. Zero values mean the column was
// absent.
type Row struct {
	ID                 string    `ch:"id"`
	SessionID          string    `ch:"session_id"`
	Device             string    `ch:"device"`
	IPAddress          string    `ch:"ip_address"`
	Country            string    `ch:"country"`
	Source             string    `ch:"source"`
	TimeSpent          uint32    `ch:"time_spent"`
	Timestamp          time.Time `ch:"timestamp"`
	PageViews          uint32    `ch:"page_views"`
	UniquePages        uint32    `ch:"unique_pages"`
	Clicks             uint32    `ch:"clicks"`
	UniqueClicks       uint32    `ch:"unique_clicks"`
	PageURLs           []string  `ch:"page_urls"`
	ButtonIDs          []string  `ch:"button_ids"`
	RelatedSearches    uint32    `ch:"related_searches"`
	ResultClicks       uint32    `ch:"result_clicks"`
	UniqueResultClicks uint32    `ch:"unique_result_clicks"`
	SearchResults      string    `ch:"search_results"`
	ButtonInteractions string    `ch:"button_interactions"`
}

// Selector is the subset of clickhouse.Conn the project needs.
type Selector interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// Options locate the SearchProject ClickHouse database.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Connect opens a native-protocol connection and pings it.
func Connect(ctx context.Context, opts Options) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "topicmingle", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open searchproject clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping searchproject clickhouse: %w", err)
	}
	return conn, nil
}

// Project maps SearchProject rows straight into summaries. The rows are
// already reduced per session, so the shared classifier never sees them.
type Project struct {
	db     Selector
	logger *slog.Logger
}

func New(db Selector, logger *slog.Logger) *Project {
	return &Project{db: db, logger: logger}
}

func (p *Project) Info() projects.Info {
	return projects.Search
}

func (p *Project) Load(ctx context.Context, window timeframe.TimeFrame) (aggregation.Result, error) {
	since := window.From
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}

	var rows []Row
	if err := p.db.Select(ctx, &rows, analyticsQuery, since); err != nil {
		return aggregation.Result{}, &projects.ProjectError{Project: projects.Search.Name, Op: "list analytics", Err: err}
	}

	res := Reduce(rows, p.logger)
	return projects.Tag(projects.Search, res), nil
}

// Reduce converts rows into summaries and the project's stats row.
func Reduce(rows []Row, logger *slog.Logger) aggregation.Result {
	res := aggregation.Result{Summaries: make([]aggregation.SessionSummary, 0, len(rows))}
	for _, r := range rows {
		res.Summaries = append(res.Summaries, SummaryFromRow(r, logger))
	}
	res.Stats = StatsFromRows(rows, res.Summaries)
	return res
}

// SummaryFromRow maps one row. Unique counts never exceed their totals.
func SummaryFromRow(r Row, logger *slog.Logger) aggregation.SessionSummary {
	sessionID := strings.TrimSpace(r.SessionID)
	if sessionID == "" {
		sessionID = "sp-" + r.ID
	}

	pageViews := int(r.PageViews)
	clicks := int(r.Clicks)

	uniquePages := int(r.UniquePages)
	if uniquePages == 0 {
		uniquePages = distinct(r.PageURLs)
	}
	uniqueClicks := int(r.UniqueClicks)
	if uniqueClicks == 0 {
		uniqueClicks = distinct(r.ButtonIDs)
	}

	return aggregation.SessionSummary{
		SessionID:          sessionID,
		Device:             orDefault(r.Device, aggregation.DefaultDevice),
		IPAddress:          orDefault(r.IPAddress, aggregation.DefaultIP),
		Country:            orDefault(r.Country, aggregation.DefaultCountry),
		Source:             orDefault(r.Source, aggregation.DefaultSource),
		TimeSpent:          aggregation.FormatTimeSpent(time.Duration(r.TimeSpent) * time.Second),
		PageViews:          pageViews,
		UniquePages:        min(uniquePages, pageViews),
		TotalClicks:        clicks,
		UniqueClicks:       min(uniqueClicks, clicks),
		SearchResults:      searchResults(r, logger),
		BlogClicks:         []aggregation.BlogBreakdown{},
		ButtonInteractions: buttonInteractions(r, logger),
		LastActive:         r.Timestamp,
	}
}

// StatsFromRows deduplicates pages and clicks across rows when the rows
// carry explicit url and button id arrays, and sums the per-row counts
// otherwise.
func StatsFromRows(rows []Row, summaries []aggregation.SessionSummary) aggregation.SiteStats {
	stats := aggregation.SiteStats{SessionCount: len(rows)}
	pages := make(map[string]struct{})
	buttons := make(map[string]struct{})

	for _, r := range rows {
		stats.PageViews += int(r.PageViews)
		stats.TotalClicks += int(r.Clicks)
		for _, u := range r.PageURLs {
			if u != "" {
				pages[u] = struct{}{}
			}
		}
		for _, b := range r.ButtonIDs {
			if b != "" {
				buttons[b] = struct{}{}
			}
		}
	}

	stats.UniquePages = len(pages)
	stats.UniqueClicks = len(buttons)
	if stats.UniquePages == 0 || stats.UniqueClicks == 0 {
		var sumPages, sumClicks int
		for _, s := range summaries {
			sumPages += s.UniquePages
			sumClicks += s.UniqueClicks
		}
		if stats.UniquePages == 0 {
			stats.UniquePages = sumPages
		}
		if stats.UniqueClicks == 0 {
			stats.UniqueClicks = sumClicks
		}
	}
	return stats
}

type searchResultJSON struct {
	Term         string `json:"term"`
	Views        int    `json:"views"`
	TotalClicks  int    `json:"totalClicks"`
	UniqueClicks int    `json:"uniqueClicks"`
}

type buttonInteractionJSON struct {
	Button string `json:"button"`
	Total  int    `json:"total"`
	Unique int    `json:"unique"`
}

func searchResults(r Row, logger *slog.Logger) []aggregation.SearchBreakdown {
	var parsed []searchResultJSON
	if decodeJSON(r.SearchResults, &parsed, "search_results", r.ID, logger) {
		out := make([]aggregation.SearchBreakdown, 0, len(parsed))
		for _, sr := range parsed {
			out = append(out, aggregation.SearchBreakdown{
				Term:         orDefault(sr.Term, aggregation.DefaultLabel),
				Views:        max(sr.Views, 0),
				TotalClicks:  max(sr.TotalClicks, 0),
				UniqueClicks: clamp(sr.UniqueClicks, sr.TotalClicks),
			})
		}
		return out
	}

	if r.RelatedSearches == 0 && r.ResultClicks == 0 {
		return []aggregation.SearchBreakdown{}
	}
	return []aggregation.SearchBreakdown{{
		Term:         fallbackSearchTerm,
		Views:        int(r.RelatedSearches),
		TotalClicks:  int(r.ResultClicks),
		UniqueClicks: clamp(int(r.UniqueClicks), int(r.ResultClicks)),
	}}
}

func buttonInteractions(r Row, logger *slog.Logger) []aggregation.ButtonBreakdown {
	var parsed []buttonInteractionJSON
	if decodeJSON(r.ButtonInteractions, &parsed, "button_interactions", r.ID, logger) {
		out := make([]aggregation.ButtonBreakdown, 0, len(parsed))
		for _, bi := range parsed {
			out = append(out, aggregation.ButtonBreakdown{
				Label:  orDefault(bi.Button, aggregation.DefaultLabel),
				Total:  max(bi.Total, 0),
				Unique: clamp(bi.Unique, bi.Total),
			})
		}
		return out
	}

	if r.ResultClicks == 0 {
		return []aggregation.ButtonBreakdown{}
	}
	return []aggregation.ButtonBreakdown{{
		Label:  fallbackButtonLabel,
		Total:  int(r.ResultClicks),
		Unique: clamp(int(r.UniqueResultClicks), int(r.ResultClicks)),
	}}
}

// decodeJSON reports whether raw held a JSON array. Malformed payloads are
// logged and treated as absent.
func decodeJSON(raw string, dest any, column, rowID string, logger *slog.Logger) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		if logger != nil {
			logger.Warn("Ignoring malformed searchproject column",
				slog.String("column", column),
				slog.String("row_id", rowID),
				slog.Any("error", err))
		}
		return false
	}
	return true
}

func distinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func clamp(v, limit int) int {
	return max(min(v, limit), 0)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
