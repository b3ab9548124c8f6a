// Package internal contains core application functionality
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"topicmingle/internal/config"
	"topicmingle/internal/database"
	"topicmingle/internal/jobs"
	"topicmingle/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the aggregation services.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Services  *Services
	Logger    *slog.Logger
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)
	geoip.InitLogger(logger)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	services := NewServices(context.Background(), cfg, dbManager.GetConnection(), logger)

	scheduler := jobs.NewScheduler(
		jobs.NewRefreshJob(services.Refresher, logger, cfg.ProjectTimeout()*2),
		jobs.NewCleanupJob(dbManager, logger, cfg.EventsRetentionDays),
		cfg.JobInterval(),
		logger,
	).WithGeoDBJob(jobs.NewGeoDBJob(cfg.GeoDBPath, logger))

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(),
		RouteMountFunc:    MountRoutes(services),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Services:    services,
		Logger:      logger,
	}, nil
}

// NewServerConfig returns the cartridge server settings. Sec-Fetch-Site is
// checked per route: tracker writes require a browser, admin requests
// authenticate with a bearer token instead.
func NewServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	return cfg
}

// Shutdown stops the server and then releases the project stores.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Application.Shutdown(ctx)
	a.Services.Close()
	return err
}
