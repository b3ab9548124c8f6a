package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// Pinger is any backend that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	DBStatus     string            `json:"db_status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthHandler checks the main store and every optional backend.
type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 2 * time.Second}
}

// IndexAction handles the health check endpoint. Backend failures degrade
// the status but never fail the request.
func (h *HealthHandler) IndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		DBStatus:  dbStatus,
	}

	if len(h.deps) > 0 {
		health.Dependencies = make(map[string]string, len(h.deps))
		pingCtx, cancel := context.WithTimeout(ctx.Ctx.Context(), h.timeout)
		defer cancel()
		for name, dep := range h.deps {
			if err := dep.Ping(pingCtx); err != nil {
				ctx.Logger.Warn("Dependency ping failed", slog.String("dependency", name), slog.Any("error", err))
				health.Dependencies[name] = "error"
				health.Status = "degraded"
				continue
			}
			health.Dependencies[name] = "ok"
		}
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
	}

	return ctx.JSON(health)
}
