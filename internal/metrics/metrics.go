// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Aggregation metrics
	ProjectLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topicmingle_project_load_duration_seconds",
			Help:    "Time taken to load and aggregate one project",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"project"},
	)

	ProjectLoadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicmingle_project_load_failures_total",
			Help: "Total number of failed project loads by project",
		},
		[]string{"project"},
	)

	ProjectSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "topicmingle_project_sessions",
			Help: "Sessions in the last published report by project",
		},
		[]string{"project"},
	)

	// Report metrics
	ReportsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topicmingle_reports_published_total",
			Help: "Total number of published reports",
		},
	)

	ReportsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topicmingle_reports_discarded_total",
			Help: "Total number of reports discarded as superseded",
		},
	)

	ReportCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicmingle_report_cache_requests_total",
			Help: "Report cache lookups by result",
		},
		[]string{"result"},
	)

	// Tracker metrics
	TrackedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicmingle_tracked_events_total",
			Help: "Tracker rows written by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(ProjectLoadDuration)
	prometheus.MustRegister(ProjectLoadFailures)
	prometheus.MustRegister(ProjectSessions)
	prometheus.MustRegister(ReportsPublished)
	prometheus.MustRegister(ReportsDiscarded)
	prometheus.MustRegister(ReportCacheRequests)
	prometheus.MustRegister(TrackedEvents)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
