package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"topicmingle/internal/metrics"
	"topicmingle/internal/timeframe"
)

var (
	// ErrStaleGeneration is returned by Refresh when a newer refresh was
	// started while it ran. The stale report is discarded.
	ErrStaleGeneration = errors.New("report generation superseded")

	// ErrNoReport is returned by a ReportStore holding no report.
	ErrNoReport = errors.New("no report stored")
)

// ReportStore shares published reports between processes.
type ReportStore interface {
	Load(ctx context.Context) (Report, error)
	Save(ctx context.Context, report Report) error
}

// RefresherOptions configure a Refresher.
type RefresherOptions struct {
	// LookbackDays bounds the fetch window. Zero or less fetches everything.
	LookbackDays int
	// MaxAge is how long a published report is served before Current
	// refreshes it. Zero or less never expires.
	MaxAge time.Duration
	// Store is optional.
	Store ReportStore
	Now   func() time.Time
}

// Refresher produces reports and publishes the newest one. Every refresh
// takes a generation number; a report is only published when no newer
// generation has been started or published before it finishes.
type Refresher struct {
	merger *Merger
	opts   RefresherOptions
	logger *slog.Logger

	generation atomic.Uint64

	mu        sync.Mutex
	current   Report
	published bool
}

func NewRefresher(merger *Merger, opts RefresherOptions, logger *slog.Logger) *Refresher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{merger: merger, opts: opts, logger: logger}
}

// Refresh builds a new report. It returns the report together with
// ErrStaleGeneration when a newer refresh started before it finished.
func (r *Refresher) Refresh(ctx context.Context) (Report, error) {
	gen := r.generation.Add(1)
	now := r.opts.Now()

	report := r.merger.Merge(ctx, timeframe.Lookback(r.opts.LookbackDays, now))
	report.Generation = gen
	report.GeneratedAt = now

	if err := r.publish(report); err != nil {
		metrics.ReportsDiscarded.Inc()
		r.logger.Info("Discarding superseded report", slog.Uint64("generation", gen))
		return report, err
	}
	metrics.ReportsPublished.Inc()

	if r.opts.Store != nil {
		if err := r.opts.Store.Save(ctx, report); err != nil {
			r.logger.Warn("Failed to cache report",
				slog.Uint64("generation", gen),
				slog.Any("error", err))
		}
	}

	r.logger.Debug("Published report",
		slog.Uint64("generation", gen),
		slog.Int("sessions", len(report.Sessions)),
		slog.Int("warnings", len(report.Warnings)))
	return report, nil
}

func (r *Refresher) publish(report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.Generation < r.generation.Load() {
		return ErrStaleGeneration
	}
	if r.published && r.current.Generation > report.Generation {
		return ErrStaleGeneration
	}
	r.current = report
	r.published = true
	return nil
}

// Current returns the newest fresh report, from memory, then the store,
// refreshing when neither holds one.
func (r *Refresher) Current(ctx context.Context) (Report, error) {
	if report, ok := r.fresh(); ok {
		return report, nil
	}

	if r.opts.Store != nil {
		report, err := r.opts.Store.Load(ctx)
		switch {
		case err == nil:
			metrics.ReportCacheRequests.WithLabelValues("hit").Inc()
			return r.adopt(report), nil
		case errors.Is(err, ErrNoReport):
			metrics.ReportCacheRequests.WithLabelValues("miss").Inc()
		default:
			metrics.ReportCacheRequests.WithLabelValues("error").Inc()
			r.logger.Warn("Report cache unavailable", slog.Any("error", err))
		}
	}

	report, err := r.Refresh(ctx)
	if errors.Is(err, ErrStaleGeneration) {
		if latest, ok := r.Latest(); ok {
			return latest, nil
		}
		// Nothing published yet; serve the unpublished report to this caller only.
		return report, nil
	}
	return report, err
}

// Latest returns the last published report regardless of age.
func (r *Refresher) Latest() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.published
}

func (r *Refresher) fresh() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.published {
		return Report{}, false
	}
	if r.opts.MaxAge > 0 && r.opts.Now().Sub(r.current.GeneratedAt) >= r.opts.MaxAge {
		return Report{}, false
	}
	return r.current, true
}

// adopt publishes a report produced elsewhere and moves the local
// generation counter up to it. It returns the report callers should serve,
// which is the newer in-memory one when adoption loses.
func (r *Refresher) adopt(report Report) Report {
	for {
		gen := r.generation.Load()
		if gen >= report.Generation || r.generation.CompareAndSwap(gen, report.Generation) {
			break
		}
	}
	if err := r.publish(report); err != nil {
		if latest, ok := r.Latest(); ok {
			return latest
		}
	}
	return report
}
