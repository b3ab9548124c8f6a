package searchproject_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/projects"
	"topicmingle/internal/projects/searchproject"
	"topicmingle/internal/testsupport"
	"topicmingle/internal/timeframe"
)

type fakeSelector struct {
	rows  []searchproject.Row
	err   error
	args  []any
	calls int
}

func (f *fakeSelector) Select(_ context.Context, dest any, _ string, args ...any) error {
	f.calls++
	f.args = args
	if f.err != nil {
		return f.err
	}
	*dest.(*[]searchproject.Row) = append([]searchproject.Row(nil), f.rows...)
	return nil
}

func TestSummaryFromRowUsesExplicitColumns(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	row := searchproject.Row{
		ID:                 "42",
		SessionID:          "sp-session",
		Device:             "Mobile • Safari",
		IPAddress:          "203.0.113.9",
		Country:            "DE",
		TimeSpent:          125,
		Timestamp:          at,
		PageViews:          4,
		UniquePages:        3,
		Clicks:             2,
		UniqueClicks:       2,
		SearchResults:      `[{"term":"Remote Jobs","views":3,"totalClicks":2,"uniqueClicks":5}]`,
		ButtonInteractions: `[{"button":"cta","total":2,"unique":1}]`,
	}

	s := searchproject.SummaryFromRow(row, testsupport.GetLogger())

	assert.Equal(t, "sp-session", s.SessionID)
	assert.Equal(t, "Mobile • Safari", s.Device)
	assert.Equal(t, "DE", s.Country)
	assert.Equal(t, "direct", s.Source)
	assert.Equal(t, "2m 5s", s.TimeSpent)
	assert.Equal(t, 4, s.PageViews)
	assert.Equal(t, 3, s.UniquePages)
	assert.Equal(t, []aggregation.SearchBreakdown{{Term: "Remote Jobs", Views: 3, TotalClicks: 2, UniqueClicks: 2}}, s.SearchResults)
	assert.Equal(t, []aggregation.ButtonBreakdown{{Label: "cta", Total: 2, Unique: 1}}, s.ButtonInteractions)
	assert.Empty(t, s.BlogClicks)
	assert.NotNil(t, s.BlogClicks)
	assert.True(t, at.Equal(s.LastActive))
}

func TestSummaryFromRowFallbacks(t *testing.T) {
	row := searchproject.Row{
		ID:                 "7",
		PageViews:          2,
		PageURLs:           []string{"/a", "/b", "/a", "/c"},
		Clicks:             1,
		ButtonIDs:          []string{"x", "y"},
		RelatedSearches:    5,
		ResultClicks:       3,
		UniqueResultClicks: 2,
		SearchResults:      "not json",
	}

	s := searchproject.SummaryFromRow(row, testsupport.GetLogger())

	assert.Equal(t, "sp-7", s.SessionID)
	assert.Equal(t, "unknown", s.IPAddress)
	assert.Equal(t, "WW", s.Country)
	assert.Equal(t, "unknown", s.Device)
	assert.Equal(t, "0s", s.TimeSpent)
	assert.Equal(t, 2, s.UniquePages, "distinct urls are clamped to page views")
	assert.Equal(t, 1, s.UniqueClicks, "distinct button ids are clamped to clicks")
	assert.Equal(t, []aggregation.SearchBreakdown{{Term: "results", Views: 5, TotalClicks: 3, UniqueClicks: 0}}, s.SearchResults)
	assert.Equal(t, []aggregation.ButtonBreakdown{{Label: "result-click", Total: 3, Unique: 2}}, s.ButtonInteractions)
}

func TestSummaryFromRowEmpty(t *testing.T) {
	s := searchproject.SummaryFromRow(searchproject.Row{ID: "1"}, nil)

	assert.Empty(t, s.SearchResults)
	assert.NotNil(t, s.SearchResults)
	assert.Empty(t, s.ButtonInteractions)
	assert.NotNil(t, s.ButtonInteractions)
}

func TestStatsFromRows(t *testing.T) {
	tests := []struct {
		name         string
		rows         []searchproject.Row
		uniquePages  int
		uniqueClicks int
	}{
		{
			name: "arrays are deduplicated across sessions",
			rows: []searchproject.Row{
				{ID: "1", PageViews: 3, PageURLs: []string{"/a", "/b"}, Clicks: 2, ButtonIDs: []string{"x"}},
				{ID: "2", PageViews: 2, PageURLs: []string{"/b", "/c"}, Clicks: 1, ButtonIDs: []string{"x", "y"}},
			},
			uniquePages:  3,
			uniqueClicks: 2,
		},
		{
			name: "without arrays the per-row counts are summed",
			rows: []searchproject.Row{
				{ID: "1", PageViews: 3, UniquePages: 2, Clicks: 2, UniqueClicks: 1},
				{ID: "2", PageViews: 2, UniquePages: 2, Clicks: 1, UniqueClicks: 1},
			},
			uniquePages:  4,
			uniqueClicks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := searchproject.Reduce(tt.rows, nil)

			assert.Equal(t, 2, res.Stats.SessionCount)
			assert.Equal(t, 5, res.Stats.PageViews)
			assert.Equal(t, 3, res.Stats.TotalClicks)
			assert.Equal(t, tt.uniquePages, res.Stats.UniquePages)
			assert.Equal(t, tt.uniqueClicks, res.Stats.UniqueClicks)
		})
	}
}

func TestProjectLoad(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	db := &fakeSelector{rows: []searchproject.Row{
		{ID: "1", SessionID: "a", Timestamp: now, PageViews: 1},
	}}
	project := searchproject.New(db, testsupport.GetLogger())

	window := timeframe.Lookback(30, now)
	res, err := project.Load(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, projects.Search, project.Info())
	assert.Equal(t, 1, db.calls)
	assert.Equal(t, []any{window.From}, db.args)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, "SearchProject", res.Summaries[0].Project)
	assert.Equal(t, "from-pink-500 to-pink-600", res.Summaries[0].ProjectColor)
	assert.Equal(t, "searchproject", res.Stats.ProjectID)
}

func TestProjectLoadError(t *testing.T) {
	db := &fakeSelector{err: errors.New("dial tcp: connection refused")}

	_, err := searchproject.New(db, testsupport.GetLogger()).Load(context.Background(), timeframe.TimeFrame{})

	var projectErr *projects.ProjectError
	require.ErrorAs(t, err, &projectErr)
	assert.Equal(t, "SearchProject", projectErr.Project)
	assert.Equal(t, "list analytics", projectErr.Op)
}
