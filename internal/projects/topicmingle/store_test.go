package topicmingle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmingle/internal/projects/topicmingle"
	"topicmingle/internal/testsupport"
	"topicmingle/internal/timeframe"
	"topicmingle/internal/tracking"
)

func TestMainProjectLoad(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	testsupport.CreateSession(t, db, "s1", "198.51.100.1", now.Add(-2*time.Hour))
	testsupport.CreateSession(t, db, "stale", "198.51.100.2", now.AddDate(0, 0, -90))
	require.NoError(t, db.Create(&tracking.Blog{ID: "b1", Title: "Ten Tips", Slug: "ten-tips"}).Error)

	_, err := tracking.RecordPageView(dbManager, logger, tracking.PageViewInput{SessionID: "s1", PageURL: "/blog/ten-tips", BlogID: "b1", Country: "US", At: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = tracking.RecordPageView(dbManager, logger, tracking.PageViewInput{SessionID: "s1", PageURL: "/blog/ten-tips", At: now.Add(-50 * time.Minute)})
	require.NoError(t, err)
	_, err = tracking.RecordClick(dbManager, logger, tracking.ClickInput{SessionID: "s1", ButtonID: "related-search-jobs", ButtonLabel: "Remote Jobs", At: now.Add(-40 * time.Minute)})
	require.NoError(t, err)
	_, err = tracking.RecordClick(dbManager, logger, tracking.ClickInput{SessionID: "s1", ButtonID: "visit-now-Remote Jobs", ButtonLabel: "Visit Now: Remote Jobs", At: now.Add(-30 * time.Minute)})
	require.NoError(t, err)
	_, err = tracking.RecordClick(dbManager, logger, tracking.ClickInput{SessionID: "ghost", ButtonID: "cta", At: now.Add(-30 * time.Minute)})
	require.NoError(t, err)

	project := topicmingle.New(db, logger)
	res, err := project.Load(context.Background(), timeframe.Lookback(30, now))
	require.NoError(t, err)

	require.Len(t, res.Summaries, 1, "sessions outside the window are not listed")
	s := res.Summaries[0]
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "TopicMingle", s.Project)
	assert.Equal(t, "198.51.100.1", s.IPAddress)
	assert.Equal(t, "US", s.Country)
	assert.Equal(t, 2, s.PageViews)
	assert.Equal(t, 1, s.UniquePages)
	assert.Equal(t, 2, s.TotalClicks)
	require.Len(t, s.SearchResults, 1)
	assert.Equal(t, "Remote Jobs", s.SearchResults[0].Term)
	assert.Equal(t, 1, s.SearchResults[0].TotalClicks)
	assert.Equal(t, 1, s.SearchResults[0].VisitNowClicks)
	assert.True(t, now.Add(-30*time.Minute).Equal(s.LastActive))

	assert.Equal(t, 1, res.Stats.SessionCount)
	assert.Equal(t, 2, res.Stats.PageViews)
	assert.Equal(t, 2, res.Stats.TotalClicks, "clicks of unknown sessions are dropped")
}

func TestStoreLabels(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	require.NoError(t, db.Create(&tracking.Blog{ID: "b1", Title: "Ten Tips", Slug: "ten-tips"}).Error)
	require.NoError(t, db.Create(&tracking.RelatedSearch{ID: "rs1", SearchText: "Remote Jobs", CategoryID: 1}).Error)

	store := topicmingle.NewStore(db)

	blogs, err := store.BlogLabels(context.Background(), []string{"b1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b1": "Ten Tips"}, blogs)

	searches, err := store.RelatedSearchLabels(context.Background(), []string{"rs1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rs1": "Remote Jobs"}, searches)
}
