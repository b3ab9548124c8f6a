// Package dashboard merges every project's aggregation into the unified
// report served to the admin dashboard.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/metrics"
	"topicmingle/internal/pkg/async"
	"topicmingle/internal/projects"
	"topicmingle/internal/timeframe"
)

// Warning reports a project whose data is missing from a report.
type Warning struct {
	Project string `json:"project"`
	Message string `json:"message"`
}

// Report is one merged view across projects.
type Report struct {
	SiteStats   []aggregation.SiteStats      `json:"site_stats"`
	Sessions    []aggregation.SessionSummary `json:"sessions"`
	Warnings    []Warning                    `json:"warnings"`
	Generation  uint64                       `json:"generation"`
	GeneratedAt time.Time                    `json:"generated_at"`
	WindowFrom  time.Time                    `json:"window_from"`
}

// Merger loads every project concurrently and merges the results.
type Merger struct {
	projects []projects.Project
	timeout  time.Duration
	pool     *async.Pool[aggregation.Result]
	logger   *slog.Logger
}

// NewMerger returns a merger over list. Project order decides stats order
// and breaks recency ties. A zero timeout leaves only ctx's deadline.
func NewMerger(list []projects.Project, timeout time.Duration, logger *slog.Logger) *Merger {
	return &Merger{
		projects: list,
		timeout:  timeout,
		pool:     async.NewPool[aggregation.Result](len(list)),
		logger:   logger,
	}
}

// Projects returns the merged projects in order.
func (m *Merger) Projects() []projects.Project {
	return m.projects
}

// Merge never fails: a project that cannot be loaded contributes zeroed
// stats, no sessions and a warning.
func (m *Merger) Merge(ctx context.Context, window timeframe.TimeFrame) Report {
	tasks := make([]async.Task[aggregation.Result], 0, len(m.projects))
	for _, p := range m.projects {
		tasks = append(tasks, async.Task[aggregation.Result]{
			Name:    p.Info().ID,
			Execute: m.loadTask(p, window),
		})
	}
	results := m.pool.Execute(ctx, tasks)

	report := Report{
		SiteStats:  make([]aggregation.SiteStats, 0, len(m.projects)),
		Sessions:   []aggregation.SessionSummary{},
		Warnings:   []Warning{},
		WindowFrom: window.From,
	}
	order := make(map[string]int, len(m.projects))

	for i, p := range m.projects {
		info := p.Info()
		order[info.ID] = i
		result, ok := results[info.ID]
		if !ok {
			result.Err = fmt.Errorf("%s: no result", info.Name)
		}

		if result.Err != nil {
			m.logger.Warn("Project load failed, reporting empty stats",
				slog.String("project", info.Name),
				slog.Any("error", result.Err))
			metrics.ProjectLoadFailures.WithLabelValues(info.ID).Inc()
			report.SiteStats = append(report.SiteStats, projects.EmptyStats(info))
			report.Warnings = append(report.Warnings, Warning{Project: info.Name, Message: result.Err.Error()})
			continue
		}

		report.SiteStats = append(report.SiteStats, result.Data.Stats)
		report.Sessions = append(report.Sessions, result.Data.Summaries...)
	}

	SortSessions(report.Sessions, order)
	return report
}

func (m *Merger) loadTask(p projects.Project, window timeframe.TimeFrame) func(context.Context) (aggregation.Result, error) {
	return func(ctx context.Context) (res aggregation.Result, err error) {
		info := p.Info()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic during load: %v", info.Name, r)
			}
		}()

		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		timer := metrics.NewTimer()
		res, err = p.Load(ctx, window)
		timer.ObserveDuration(metrics.ProjectLoadDuration.WithLabelValues(info.ID))
		if err == nil {
			metrics.ProjectSessions.WithLabelValues(info.ID).Set(float64(len(res.Summaries)))
		}
		return res, err
	}
}

// SortSessions orders by last activity, newest first. Ties fall back to
// project order, then session id.
func SortSessions(sessions []aggregation.SessionSummary, projectOrder map[string]int) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastActive.Equal(b.LastActive) {
			return a.LastActive.After(b.LastActive)
		}
		if pa, pb := projectOrder[a.ProjectID], projectOrder[b.ProjectID]; pa != pb {
			return pa < pb
		}
		return a.SessionID < b.SessionID
	})
}
