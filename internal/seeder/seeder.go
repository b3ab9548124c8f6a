// Package seeder loads YAML fixtures into the main store.
package seeder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"topicmingle/internal/tracking"
)

// Fixtures is the seed file layout.
type Fixtures struct {
	Categories      []CategoryFixture      `yaml:"categories"`
	Blogs           []BlogFixture          `yaml:"blogs"`
	RelatedSearches []RelatedSearchFixture `yaml:"related_searches"`
	Sessions        []SessionFixture       `yaml:"sessions"`
	EmailCaptures   []EmailCaptureFixture  `yaml:"email_captures"`
}

type CategoryFixture struct {
	ID   uint   `yaml:"id"`
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

type BlogFixture struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Slug       string `yaml:"slug"`
	CategoryID *uint  `yaml:"category_id"`
}

type RelatedSearchFixture struct {
	ID         string `yaml:"id"`
	SearchText string `yaml:"search_text"`
	CategoryID uint   `yaml:"category_id"`
}

// SessionFixture is a visitor session with its events. Offsets are
// relative to the seed time, so fixtures stay inside the dashboard window.
type SessionFixture struct {
	SessionID string         `yaml:"session_id"`
	IPAddress string         `yaml:"ip_address"`
	Country   string         `yaml:"country"`
	Source    string         `yaml:"source"`
	UserAgent string         `yaml:"user_agent"`
	Ago       time.Duration  `yaml:"ago"`
	PageViews []EventFixture `yaml:"page_views"`
	Clicks    []ClickFixture `yaml:"clicks"`
}

type EventFixture struct {
	PageURL string        `yaml:"page_url"`
	BlogID  string        `yaml:"blog_id"`
	Ago     time.Duration `yaml:"ago"`
}

type ClickFixture struct {
	ButtonID    string        `yaml:"button_id"`
	ButtonLabel string        `yaml:"button_label"`
	PageURL     string        `yaml:"page_url"`
	Ago         time.Duration `yaml:"ago"`
}

type EmailCaptureFixture struct {
	Email   string        `yaml:"email"`
	PageKey string        `yaml:"page_key"`
	Country string        `yaml:"country"`
	Ago     time.Duration `yaml:"ago"`
}

// Counts reports how many rows a seed run wrote.
type Counts struct {
	Catalog       int
	Sessions      int
	PageViews     int
	Clicks        int
	EmailCaptures int
}

// Seeder writes fixtures through the same paths the tracker uses.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{DBManager: dbManager, Logger: logger, Now: time.Now}
}

// LoadFile reads fixtures from a YAML file.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes YAML fixtures. Unknown keys are rejected.
func Load(r io.Reader) (*Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}

// Run writes the fixtures. Catalog rows are upserted by id, so seeding the
// same file twice does not fail.
func (s *Seeder) Run(ctx context.Context, fx *Fixtures) (Counts, error) {
	start := time.Now()
	now := s.Now()
	var counts Counts

	err := sqlite.PerformWrite(s.Logger, s.DBManager.GetConnection(), func(tx *gorm.DB) error {
		// Each Create needs a fresh statement; a shared chain keeps the
		// previous model's columns.
		upsert := func() *gorm.DB {
			return tx.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true})
		}
		for _, c := range fx.Categories {
			if err := upsert().Create(&tracking.Category{ID: c.ID, Name: c.Name, Slug: c.Slug, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Slug, err)
			}
			counts.Catalog++
		}
		for _, b := range fx.Blogs {
			if err := upsert().Create(&tracking.Blog{ID: b.ID, Title: b.Title, Slug: b.Slug, CategoryID: b.CategoryID, Status: "published", CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("seed blog %s: %w", b.ID, err)
			}
			counts.Catalog++
		}
		for _, rs := range fx.RelatedSearches {
			if err := upsert().Create(&tracking.RelatedSearch{ID: rs.ID, SearchText: rs.SearchText, CategoryID: rs.CategoryID, IsActive: true, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("seed related search %s: %w", rs.ID, err)
			}
			counts.Catalog++
		}
		return nil
	})
	if err != nil {
		return counts, err
	}

	for _, sf := range fx.Sessions {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if err := s.seedSession(sf, now, &counts); err != nil {
			return counts, err
		}
	}

	for _, ec := range fx.EmailCaptures {
		if _, err := tracking.CaptureEmail(s.DBManager, s.Logger, tracking.EmailCaptureInput{
			Email:   ec.Email,
			PageKey: ec.PageKey,
			Country: ec.Country,
			At:      now.Add(-ec.Ago),
		}); err != nil {
			return counts, fmt.Errorf("seed email capture %s: %w", ec.Email, err)
		}
		counts.EmailCaptures++
	}

	s.Logger.Info("Seeding completed",
		slog.Int("catalog", counts.Catalog),
		slog.Int("sessions", counts.Sessions),
		slog.Int("page_views", counts.PageViews),
		slog.Int("clicks", counts.Clicks),
		slog.Int("email_captures", counts.EmailCaptures),
		slog.Duration("elapsed", time.Since(start)))
	return counts, nil
}

func (s *Seeder) seedSession(sf SessionFixture, now time.Time, counts *Counts) error {
	if _, err := tracking.UpsertSession(s.DBManager, s.Logger, tracking.SessionInput{
		SessionID: sf.SessionID,
		IPAddress: sf.IPAddress,
		Country:   sf.Country,
		Source:    sf.Source,
		UserAgent: sf.UserAgent,
		At:        now.Add(-sf.Ago),
	}); err != nil {
		return fmt.Errorf("seed session %s: %w", sf.SessionID, err)
	}
	counts.Sessions++

	for _, pv := range sf.PageViews {
		if _, err := tracking.RecordPageView(s.DBManager, s.Logger, tracking.PageViewInput{
			SessionID: sf.SessionID,
			PageURL:   pv.PageURL,
			BlogID:    pv.BlogID,
			Country:   sf.Country,
			Source:    sf.Source,
			At:        now.Add(-pv.Ago),
		}); err != nil {
			return fmt.Errorf("seed page view for %s: %w", sf.SessionID, err)
		}
		counts.PageViews++
	}

	for _, c := range sf.Clicks {
		if _, err := tracking.RecordClick(s.DBManager, s.Logger, tracking.ClickInput{
			SessionID:   sf.SessionID,
			ButtonID:    c.ButtonID,
			ButtonLabel: c.ButtonLabel,
			PageURL:     c.PageURL,
			Country:     sf.Country,
			Source:      sf.Source,
			At:          now.Add(-c.Ago),
		}); err != nil {
			return fmt.Errorf("seed click for %s: %w", sf.SessionID, err)
		}
		counts.Clicks++
	}
	return nil
}
