package aggregation

import (
	"fmt"
	"time"
)

// SessionSummary is the reconciled view of one visitor session.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	ProjectID    string `json:"project_id"`
	Project      string `json:"project"`
	ProjectIcon  string `json:"project_icon"`
	ProjectColor string `json:"project_color"`

	Device    string `json:"device"`
	IPAddress string `json:"ip_address"`
	Country   string `json:"country"`
	Source    string `json:"source"`
	TimeSpent string `json:"time_spent"`

	PageViews    int `json:"page_views"`
	UniquePages  int `json:"unique_pages"`
	TotalClicks  int `json:"total_clicks"`
	UniqueClicks int `json:"unique_clicks"`

	SearchResults      []SearchBreakdown `json:"search_results"`
	BlogClicks         []BlogBreakdown   `json:"blog_clicks"`
	ButtonInteractions []ButtonBreakdown `json:"button_interactions"`

	LastActive time.Time `json:"last_active"`
}

// SearchBreakdown tallies one related search term within a session.
type SearchBreakdown struct {
	Term           string `json:"term"`
	Views          int    `json:"views"`
	TotalClicks    int    `json:"total_clicks"`
	UniqueClicks   int    `json:"unique_clicks"`
	VisitNowClicks int    `json:"visit_now_clicks"`
	VisitNowUnique int    `json:"visit_now_unique"`
}

// BlogBreakdown tallies clicks on one blog card within a session.
type BlogBreakdown struct {
	Title        string `json:"title"`
	TotalClicks  int    `json:"total_clicks"`
	UniqueClicks int    `json:"unique_clicks"`
}

// ButtonBreakdown tallies clicks on any other button within a session.
type ButtonBreakdown struct {
	Label  string `json:"label"`
	Total  int    `json:"total"`
	Unique int    `json:"unique"`
}

// SiteStats is the per-project headline row.
type SiteStats struct {
	ProjectID    string `json:"project_id"`
	ProjectName  string `json:"project_name"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	SessionCount int    `json:"session_count"`
	PageViews    int    `json:"page_views"`
	UniquePages  int    `json:"unique_pages"`
	TotalClicks  int    `json:"total_clicks"`
	UniqueClicks int    `json:"unique_clicks"`
}

// Result is the output of one aggregation pass.
type Result struct {
	Summaries []SessionSummary
	Stats     SiteStats
}

// FormatTimeSpent renders a duration as "{m}m {s}s", or "0s" when empty.
func FormatTimeSpent(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds <= 0 {
		return "0s"
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
