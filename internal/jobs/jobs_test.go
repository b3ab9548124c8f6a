package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/dashboard"
	"topicmingle/internal/projects"
	"topicmingle/internal/testsupport"
	"topicmingle/internal/timeframe"
	"topicmingle/internal/tracking"
)

type countingProject struct {
	calls atomic.Int32
}

func (p *countingProject) Info() projects.Info { return projects.TopicMingle }

func (p *countingProject) Load(context.Context, timeframe.TimeFrame) (aggregation.Result, error) {
	p.calls.Add(1)
	return aggregation.Result{
		Summaries: []aggregation.SessionSummary{{SessionID: "s1", LastActive: time.Now()}},
		Stats:     projects.EmptyStats(projects.TopicMingle),
	}, nil
}

func newRefresher(p projects.Project) *dashboard.Refresher {
	logger := testsupport.GetLogger()
	merger := dashboard.NewMerger([]projects.Project{p}, time.Second, logger)
	return dashboard.NewRefresher(merger, dashboard.RefresherOptions{LookbackDays: 30}, logger)
}

func TestCleanupJobDeletesOldRows(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	testsupport.CreateSession(t, db, "old", "198.51.100.1", now.AddDate(0, 0, -40))
	testsupport.CreateSession(t, db, "new", "198.51.100.2", now.AddDate(0, 0, -1))
	require.NoError(t, db.Create(&tracking.PageView{ID: "01OLD", SessionID: "old", PageURL: "/", Source: "direct", ViewedAt: now.AddDate(0, 0, -40)}).Error)
	require.NoError(t, db.Create(&tracking.PageView{ID: "01NEW", SessionID: "new", PageURL: "/", Source: "direct", ViewedAt: now.AddDate(0, 0, -1)}).Error)

	job := NewCleanupJob(dbManager, logger, 30)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run())

	var sessions []tracking.Session
	require.NoError(t, db.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new", sessions[0].SessionID)

	var views int64
	db.Model(&tracking.PageView{}).Count(&views)
	assert.EqualValues(t, 1, views)
}

func TestCleanupJobDisabled(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CreateSession(t, db, "ancient", "198.51.100.1", time.Now().AddDate(-5, 0, 0))

	require.NoError(t, NewCleanupJob(dbManager, logger, 0).Run())

	var count int64
	db.Model(&tracking.Session{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRefreshJobPublishes(t *testing.T) {
	project := &countingProject{}
	refresher := newRefresher(project)

	require.NoError(t, NewRefreshJob(refresher, testsupport.GetLogger(), time.Second).Run(context.Background()))

	report, ok := refresher.Latest()
	require.True(t, ok)
	assert.Len(t, report.Sessions, 1)
	assert.EqualValues(t, 1, project.calls.Load())
}

func TestSchedulerRunsRefreshOnStart(t *testing.T) {
	project := &countingProject{}
	refresher := newRefresher(project)
	scheduler := NewScheduler(NewRefreshJob(refresher, testsupport.GetLogger(), time.Second), nil, time.Hour, testsupport.GetLogger())

	require.NoError(t, scheduler.Start())
	assert.True(t, scheduler.IsRunning())

	assert.Eventually(t, func() bool {
		_, ok := refresher.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
	assert.EqualValues(t, 1, project.calls.Load())
}

func TestExecuteJobSafelyRecoversPanic(t *testing.T) {
	scheduler := NewScheduler(nil, nil, time.Minute, testsupport.GetLogger())
	defer scheduler.Stop()

	assert.NotPanics(t, func() {
		scheduler.executeJobSafely("boom", func() error { panic("boom") })
	})

	ran := false
	scheduler.executeJobSafely("boom", func() error {
		ran = true
		return nil
	})
	assert.True(t, ran, "the job can run again after a panic")
}

func TestGeoDBJobReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	reloads := 0
	job := NewGeoDBJob(path, testsupport.GetLogger())
	job.reload = func() { reloads++ }

	require.NoError(t, job.Run())
	assert.Equal(t, 0, reloads, "first run records the current file")

	require.NoError(t, job.Run())
	assert.Equal(t, 0, reloads, "unchanged file is not reloaded")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.NoError(t, job.Run())
	assert.Equal(t, 1, reloads)
}

func TestGeoDBJobMissingFile(t *testing.T) {
	job := NewGeoDBJob(filepath.Join(t.TempDir(), "missing.mmdb"), testsupport.GetLogger())
	job.reload = func() { t.Fatal("reload must not run") }

	assert.NoError(t, job.Run())
}
