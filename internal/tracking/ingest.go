package tracking

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/pkg/geoip"
)

// ErrInvalidInput marks tracker payloads missing required fields.
var ErrInvalidInput = errors.New("invalid tracking input")

// SessionInput is the tracker's session heartbeat.
type SessionInput struct {
	SessionID string
	IPAddress string
	Country   string
	Source    string
	UserAgent string
	At        time.Time
}

// PageViewInput records one page view.
type PageViewInput struct {
	SessionID string
	PageURL   string
	BlogID    string
	Country   string
	Source    string
	At        time.Time
}

// ClickInput records one button click.
type ClickInput struct {
	SessionID   string
	ButtonID    string
	ButtonLabel string
	PageURL     string
	Country     string
	Source      string
	At          time.Time
}

// EmailCaptureInput records an email left on a page.
type EmailCaptureInput struct {
	Email   string
	PageKey string
	Country string
	Source  string
	At      time.Time
}

// UpsertSession creates the session on first sight and otherwise advances
// last_active, filling descriptors that were unknown before.
func UpsertSession(dbManager cartridge.DBManager, logger *slog.Logger, in SessionInput) (*Session, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	at := timestampOrNow(in.At)
	country := resolveCountry(in.Country, in.IPAddress)
	source := sourceOrDirect(in.Source)

	var session Session
	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		err := tx.Where("session_id = ?", in.SessionID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			session = Session{
				ID:         uuid.NewString(),
				SessionID:  in.SessionID,
				IPAddress:  in.IPAddress,
				Country:    country,
				Source:     source,
				UserAgent:  in.UserAgent,
				CreatedAt:  at,
				LastActive: at,
			}
			return tx.Create(&session).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if at.After(session.LastActive) {
			updates["last_active"] = at
			session.LastActive = at
		}
		if session.IPAddress == "" && in.IPAddress != "" {
			updates["ip_address"] = in.IPAddress
			session.IPAddress = in.IPAddress
		}
		if session.Country == "" && country != "" {
			updates["country"] = country
			session.Country = country
		}
		if session.UserAgent == "" && in.UserAgent != "" {
			updates["user_agent"] = in.UserAgent
			session.UserAgent = in.UserAgent
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&Session{}).Where("id = ?", session.ID).Updates(updates).Error
	})
	if err != nil {
		logger.Error("Failed to upsert session", slog.String("session_id", in.SessionID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}
	return &session, nil
}

// RecordPageView appends a page view and advances the session.
func RecordPageView(dbManager cartridge.DBManager, logger *slog.Logger, in PageViewInput) (*PageView, error) {
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.PageURL) == "" {
		return nil, fmt.Errorf("%w: session_id and page_url are required", ErrInvalidInput)
	}
	view := &PageView{
		ID:        ulid.Make().String(),
		SessionID: strings.TrimSpace(in.SessionID),
		PageURL:   in.PageURL,
		BlogID:    in.BlogID,
		Country:   in.Country,
		Source:    sourceOrDirect(in.Source),
		ViewedAt:  timestampOrNow(in.At),
	}

	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := tx.Create(view).Error; err != nil {
			return err
		}
		return touchSession(tx, view.SessionID, view.ViewedAt)
	})
	if err != nil {
		logger.Error("Failed to record page view", slog.Any("error", err))
		return nil, fmt.Errorf("failed to record page view: %w", err)
	}
	return view, nil
}

// RecordClick appends a click and advances the session.
func RecordClick(dbManager cartridge.DBManager, logger *slog.Logger, in ClickInput) (*Click, error) {
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.ButtonID) == "" {
		return nil, fmt.Errorf("%w: session_id and button_id are required", ErrInvalidInput)
	}
	click := &Click{
		ID:          ulid.Make().String(),
		SessionID:   strings.TrimSpace(in.SessionID),
		ButtonID:    in.ButtonID,
		ButtonLabel: in.ButtonLabel,
		PageURL:     in.PageURL,
		Country:     in.Country,
		Source:      sourceOrDirect(in.Source),
		ClickedAt:   timestampOrNow(in.At),
	}

	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		if err := tx.Create(click).Error; err != nil {
			return err
		}
		return touchSession(tx, click.SessionID, click.ClickedAt)
	})
	if err != nil {
		logger.Error("Failed to record click", slog.Any("error", err))
		return nil, fmt.Errorf("failed to record click: %w", err)
	}
	return click, nil
}

// CaptureEmail stores a validated email address.
func CaptureEmail(dbManager cartridge.DBManager, logger *slog.Logger, in EmailCaptureInput) (*EmailCapture, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if strings.TrimSpace(in.PageKey) == "" {
		return nil, fmt.Errorf("%w: page_key is required", ErrInvalidInput)
	}
	capture := &EmailCapture{
		ID:         uuid.NewString(),
		Email:      strings.ToLower(addr.Address),
		PageKey:    in.PageKey,
		Country:    in.Country,
		Source:     sourceOrDirect(in.Source),
		CapturedAt: timestampOrNow(in.At),
	}

	err = sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return tx.Create(capture).Error
	})
	if err != nil {
		logger.Error("Failed to capture email", slog.Any("error", err))
		return nil, fmt.Errorf("failed to capture email: %w", err)
	}
	return capture, nil
}

func touchSession(tx *gorm.DB, sessionID string, at time.Time) error {
	return tx.Model(&Session{}).
		Where("session_id = ? AND last_active < ?", sessionID, at).
		Update("last_active", at).Error
}

func resolveCountry(country, ip string) string {
	if country = strings.TrimSpace(country); country != "" {
		return country
	}
	return geoip.CountryCode(ip)
}

func sourceOrDirect(source string) string {
	if source = strings.TrimSpace(source); source != "" {
		return source
	}
	return aggregation.DefaultSource
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
