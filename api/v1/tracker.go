package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"topicmingle/internal/metrics"
	"topicmingle/internal/pkg/referrers"
	"topicmingle/internal/tracking"
)

const (
	msgRecorded       = "Recorded"
	errInvalidRequest = "Invalid request"
)

// SessionParams is the tracker's session heartbeat. Referrer and LandingURL
// resolve Source when the tracker sends none.
type SessionParams struct {
	SessionID  string    `json:"session_id"`
	IPAddress  string    `json:"ip_address"`
	Country    string    `json:"country"`
	Source     string    `json:"source"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
	LandingURL string    `json:"landing_url"`
	Timestamp  time.Time `json:"timestamp"`
}

type PageViewParams struct {
	SessionID string    `json:"session_id"`
	PageURL   string    `json:"page_url"`
	BlogID    string    `json:"blog_id"`
	Country   string    `json:"country"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type ClickParams struct {
	SessionID   string    `json:"session_id"`
	ButtonID    string    `json:"button_id"`
	ButtonLabel string    `json:"button_label"`
	PageURL     string    `json:"page_url"`
	Country     string    `json:"country"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

type EmailCaptureParams struct {
	Email     string    `json:"email"`
	PageKey   string    `json:"page_key"`
	Country   string    `json:"country"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// UpsertSessionHandler records the tracker's session heartbeat. The client
// address is used when the payload carries none.
func UpsertSessionHandler(ctx *cartridge.Context) error {
	var params SessionParams
	if err := ctx.BodyParser(&params); err != nil {
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	ip := strings.TrimSpace(params.IPAddress)
	if ip == "" {
		ip = clientIP(ctx.Ctx)
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = ctx.Get("User-Agent")
		if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
			userAgent = forwardedUA
		}
	}

	source := strings.TrimSpace(params.Source)
	if source == "" {
		referrer := params.Referrer
		if referrer == "" {
			referrer = ctx.Get("Referer")
		}
		source = referrers.Source(params.LandingURL, referrer, ctx.Ctx.Hostname())
	}

	session, err := tracking.UpsertSession(ctx.DBManager, ctx.Logger, tracking.SessionInput{
		SessionID: params.SessionID,
		IPAddress: ip,
		Country:   params.Country,
		Source:    source,
		UserAgent: userAgent,
		At:        params.Timestamp,
	})
	if err != nil {
		return writeError(ctx, err)
	}

	metrics.TrackedEvents.WithLabelValues("session").Inc()
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message":    msgRecorded,
		"session_id": session.SessionID,
		"country":    session.Country,
		"source":     session.Source,
	})
}

func CreatePageViewHandler(ctx *cartridge.Context) error {
	var params PageViewParams
	if err := ctx.BodyParser(&params); err != nil {
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	view, err := tracking.RecordPageView(ctx.DBManager, ctx.Logger, tracking.PageViewInput{
		SessionID: params.SessionID,
		PageURL:   params.PageURL,
		BlogID:    params.BlogID,
		Country:   params.Country,
		Source:    params.Source,
		At:        params.Timestamp,
	})
	if err != nil {
		return writeError(ctx, err)
	}

	metrics.TrackedEvents.WithLabelValues("page_view").Inc()
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"message": msgRecorded, "id": view.ID})
}

func CreateClickHandler(ctx *cartridge.Context) error {
	var params ClickParams
	if err := ctx.BodyParser(&params); err != nil {
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	click, err := tracking.RecordClick(ctx.DBManager, ctx.Logger, tracking.ClickInput{
		SessionID:   params.SessionID,
		ButtonID:    params.ButtonID,
		ButtonLabel: params.ButtonLabel,
		PageURL:     params.PageURL,
		Country:     params.Country,
		Source:      params.Source,
		At:          params.Timestamp,
	})
	if err != nil {
		return writeError(ctx, err)
	}

	metrics.TrackedEvents.WithLabelValues("click").Inc()
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"message": msgRecorded, "id": click.ID})
}

func CreateEmailCaptureHandler(ctx *cartridge.Context) error {
	var params EmailCaptureParams
	if err := ctx.BodyParser(&params); err != nil {
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	capture, err := tracking.CaptureEmail(ctx.DBManager, ctx.Logger, tracking.EmailCaptureInput{
		Email:   params.Email,
		PageKey: params.PageKey,
		Country: params.Country,
		Source:  params.Source,
		At:      params.Timestamp,
	})
	if err != nil {
		return writeError(ctx, err)
	}

	metrics.TrackedEvents.WithLabelValues("email_capture").Inc()
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"message": msgRecorded, "id": capture.ID})
}

func writeError(ctx *cartridge.Context, err error) error {
	if errors.Is(err, tracking.ErrInvalidInput) {
		ctx.Logger.Debug("Rejected tracker payload", slog.String("path", ctx.Path()), slog.Any("error", err))
		return badRequest(ctx.Ctx, err.Error())
	}

	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
		return ctx.Status(599).JSON(fiber.Map{}) // custom status code
	}

	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to record event",
		"code":  "COLLECTION_ERROR",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": message})
}
