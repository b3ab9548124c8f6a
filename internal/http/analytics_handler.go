package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"topicmingle/internal/dashboard"
	"topicmingle/internal/tracking"
)

const (
	defaultCaptureLimit = 100
	maxCaptureLimit     = 1000
)

// AnalyticsHandlers serve the admin analytics API.
type AnalyticsHandlers struct {
	refresher  *dashboard.Refresher
	projectIDs []string
	now        func() time.Time
}

func NewAnalyticsHandlers(refresher *dashboard.Refresher, projectIDs []string) *AnalyticsHandlers {
	return &AnalyticsHandlers{refresher: refresher, projectIDs: projectIDs, now: time.Now}
}

// IndexAction returns the current report filtered by ?site= and ?period=.
func (h *AnalyticsHandlers) IndexAction(ctx *cartridge.Context) error {
	view, err := dashboard.ParseView(ctx.Query("site"), ctx.Query("period"), h.projectIDs)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.refresher.Current(ctx.Ctx.Context())
	if err != nil {
		ctx.Logger.Error("Failed to build analytics report", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build analytics report"})
	}

	return ctx.JSON(presentReport(dashboard.Filter(report, view, h.now()), view))
}

// RefreshAction rebuilds the report past every cache.
func (h *AnalyticsHandlers) RefreshAction(ctx *cartridge.Context) error {
	view, err := dashboard.ParseView(ctx.Query("site"), ctx.Query("period"), h.projectIDs)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.refresher.Refresh(ctx.Ctx.Context())
	if errors.Is(err, dashboard.ErrStaleGeneration) {
		if latest, ok := h.refresher.Latest(); ok {
			report = latest
		}
	}

	ctx.Logger.Info("Analytics report refreshed",
		slog.Uint64("generation", report.Generation),
		slog.Int("warnings", len(report.Warnings)))
	return ctx.JSON(presentReport(dashboard.Filter(report, view, h.now()), view))
}

// TotalsAction returns raw row counts of the main store.
func TotalsAction(ctx *cartridge.Context) error {
	totals, err := tracking.GetTotals(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Failed to count totals", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count totals"})
	}
	return ctx.JSON(totals)
}

type emailCaptureView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	PageKey    string    `json:"page_key"`
	Country    string    `json:"country"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

// EmailCapturesAction lists captured emails, newest first.
func EmailCapturesAction(ctx *cartridge.Context) error {
	limit := ctx.QueryInt("limit", defaultCaptureLimit)
	if limit <= 0 || limit > maxCaptureLimit {
		limit = defaultCaptureLimit
	}

	captures, err := tracking.ListEmailCaptures(ctx.DB(), limit)
	if err != nil {
		ctx.Logger.Error("Failed to list email captures", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list email captures"})
	}

	out := make([]emailCaptureView, 0, len(captures))
	for _, c := range captures {
		out = append(out, emailCaptureView{
			ID:         c.ID,
			Email:      c.Email,
			PageKey:    c.PageKey,
			Country:    countryName(c.Country),
			Source:     c.Source,
			CapturedAt: c.CapturedAt,
		})
	}
	return ctx.JSON(fiber.Map{"email_captures": out})
}
