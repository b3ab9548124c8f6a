package internal

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"topicmingle/internal/config"
	"topicmingle/internal/dashboard"
	"topicmingle/internal/http"
	"topicmingle/internal/projects"
	"topicmingle/internal/projects/dataorbit"
	"topicmingle/internal/projects/searchproject"
	"topicmingle/internal/projects/topicmingle"
	"topicmingle/internal/reportcache"
)

const connectTimeout = 15 * time.Second

// Services are the long-lived components shared by routes and jobs.
type Services struct {
	Refresher  *dashboard.Refresher
	ProjectIDs []string
	Pingers    map[string]http.Pinger

	closers []func()
}

// NewServices connects every configured project store and the report
// cache. A store that cannot be reached is logged and left out, so the
// service still starts with the main site alone.
func NewServices(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) *Services {
	svc := &Services{Pingers: make(map[string]http.Pinger)}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	list := []projects.Project{topicmingle.New(db, logger)}

	if cfg.DataOrbitDSN != "" {
		pool, err := dataorbit.Connect(ctx, cfg.DataOrbitDSN)
		if err != nil {
			logger.Warn("DataOrbitZone store unavailable, project disabled", slog.Any("error", err))
		} else {
			list = append(list, dataorbit.New(pool, logger))
			svc.Pingers[projects.DataOrbit.ID] = pool
			svc.closers = append(svc.closers, pool.Close)
		}
	}

	if cfg.SearchProjectAddr != "" {
		conn, err := searchproject.Connect(ctx, searchproject.Options{
			Addr:     cfg.SearchProjectAddr,
			Database: cfg.SearchProjectDatabase,
			Username: cfg.SearchProjectUser,
			Password: cfg.SearchProjectPassword,
		})
		if err != nil {
			logger.Warn("SearchProject store unavailable, project disabled", slog.Any("error", err))
		} else {
			list = append(list, searchproject.New(conn, logger))
			svc.Pingers[projects.Search.ID] = conn
			svc.closers = append(svc.closers, func() { conn.Close() })
		}
	}

	opts := dashboard.RefresherOptions{
		LookbackDays: cfg.LookbackDays,
		MaxAge:       cfg.ReportCacheTTL(),
	}
	if cfg.RedisURL != "" {
		cache, err := reportcache.NewFromURL(cfg.RedisURL, cfg.ReportCacheTTL())
		if err == nil {
			err = cache.Ping(ctx)
		}
		if err != nil {
			logger.Warn("Report cache unavailable, serving from memory only", slog.Any("error", err))
			if cache != nil {
				cache.Close()
			}
		} else {
			opts.Store = cache
			svc.Pingers["redis"] = cache
			svc.closers = append(svc.closers, func() { cache.Close() })
		}
	}

	merger := dashboard.NewMerger(list, cfg.ProjectTimeout(), logger)
	svc.Refresher = dashboard.NewRefresher(merger, opts, logger)
	for _, p := range list {
		svc.ProjectIDs = append(svc.ProjectIDs, p.Info().ID)
	}

	logger.Info("Projects configured", slog.Any("projects", svc.ProjectIDs))
	return svc
}

// NewServicesWithProjects wires the given projects without touching any
// external store.
func NewServicesWithProjects(list []projects.Project, opts dashboard.RefresherOptions, timeout time.Duration, logger *slog.Logger) *Services {
	svc := &Services{
		Refresher: dashboard.NewRefresher(dashboard.NewMerger(list, timeout, logger), opts, logger),
		Pingers:   make(map[string]http.Pinger),
	}
	for _, p := range list {
		svc.ProjectIDs = append(svc.ProjectIDs, p.Info().ID)
	}
	return svc
}

// Close releases every store connection.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
