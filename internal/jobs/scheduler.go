package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	cleanupInterval = 24 * time.Hour
	geoDBInterval   = time.Hour
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	interval  time.Duration

	// A job never overlaps with its own previous run
	processingMutex sync.Mutex
	processing      map[string]bool

	refreshJob *RefreshJob
	cleanupJob *CleanupJob
	geoDBJob   *GeoDBJob

	refreshTicker *time.Ticker
	cleanupTicker *time.Ticker
	geoDBTicker   *time.Ticker
	wg            sync.WaitGroup
}

// NewScheduler runs refreshJob every interval and cleanupJob daily. Either
// job may be nil.
func NewScheduler(refreshJob *RefreshJob, cleanupJob *CleanupJob, interval time.Duration, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	return &Scheduler{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		interval:   interval,
		processing: make(map[string]bool),
		refreshJob: refreshJob,
		cleanupJob: cleanupJob,
	}
}

// executeJobSafely runs a job only if its previous run has finished
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.processing[jobName] {
		s.logger.Debug("Skipping job execution - previous run still in progress", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.processing[jobName] = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		delete(s.processing, jobName)
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	if s.refreshJob != nil {
		s.refreshTicker = s.every("report_refresh", s.interval, func() error {
			return s.refreshJob.Run(s.ctx)
		})
	}
	if s.cleanupJob != nil {
		s.cleanupTicker = s.every("cleanup", cleanupInterval, s.cleanupJob.Run)
	}
	if s.geoDBJob != nil {
		s.geoDBTicker = s.every("geodb_reload", geoDBInterval, s.geoDBJob.Run)
	}

	s.logger.Info("Background jobs started", slog.Duration("refresh_interval", s.interval))
	return nil
}

// every runs job once immediately and then on each tick until Stop.
func (s *Scheduler) every(name string, interval time.Duration, job func() error) *time.Ticker {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(name, job)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, job)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()
	return ticker
}

// Stop halts all background jobs and waits for running ones to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.refreshTicker != nil {
		s.refreshTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.geoDBTicker != nil {
		s.geoDBTicker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// WithGeoDBJob adds the GeoLite2 reload job. Call before Start.
func (s *Scheduler) WithGeoDBJob(job *GeoDBJob) *Scheduler {
	s.geoDBJob = job
	return s
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
