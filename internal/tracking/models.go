// Package tracking owns the main site's event tables and the tracker writes.
package tracking

import "time"

// Session is one visitor session of the main site.
type Session struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SessionID  string    `gorm:"uniqueIndex;not null"`
	IPAddress  string    `gorm:"size:64"`
	Country    string    `gorm:"size:64"`
	Source     string    `gorm:"not null;default:direct"`
	UserAgent  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
	LastActive time.Time `gorm:"index;not null"`
}

// PageView is one page view of the main site.
type PageView struct {
	ID        string    `gorm:"primaryKey;size:26"`
	SessionID string    `gorm:"index;not null"`
	PageURL   string    `gorm:"not null"`
	BlogID    string    `gorm:"index"`
	Country   string    `gorm:"size:64"`
	Source    string    `gorm:"not null;default:direct"`
	ViewedAt  time.Time `gorm:"index;not null"`
}

// Click is one button click of the main site.
type Click struct {
	ID          string    `gorm:"primaryKey;size:26"`
	SessionID   string    `gorm:"index;not null"`
	ButtonID    string    `gorm:"index;not null"`
	ButtonLabel string
	PageURL     string
	Country     string    `gorm:"size:64"`
	Source      string    `gorm:"not null;default:direct"`
	ClickedAt   time.Time `gorm:"index;not null"`
}

// EmailCapture is an address left on a pre-landing page.
type EmailCapture struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Email      string    `gorm:"index;not null"`
	PageKey    string    `gorm:"index;not null"`
	Country    string    `gorm:"size:64"`
	Source     string    `gorm:"not null;default:direct"`
	CapturedAt time.Time `gorm:"index;not null"`
}

// Category groups blogs and related searches.
type Category struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Slug      string `gorm:"uniqueIndex;not null"`
	CodeRange string
	CreatedAt time.Time
}

// Blog is a published article; its title labels blog-card clicks.
type Blog struct {
	ID            string `gorm:"primaryKey;size:36"`
	Title         string `gorm:"not null"`
	Slug          string `gorm:"uniqueIndex;not null"`
	Author        string
	Content       string `gorm:"type:text"`
	FeaturedImage string
	CategoryID    *uint `gorm:"index"`
	SerialNumber  int
	Status        string `gorm:"default:draft"`
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// RelatedSearch is a search prompt; its text labels related-search clicks.
type RelatedSearch struct {
	ID           string `gorm:"primaryKey;size:36"`
	SearchText   string `gorm:"not null"`
	Title        string
	CategoryID   uint `gorm:"index"`
	DisplayOrder int
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
}

// Models lists every table owned by the package, in migration order.
func Models() []any {
	return []any{
		&Category{},
		&Blog{},
		&RelatedSearch{},
		&Session{},
		&PageView{},
		&Click{},
		&EmailCapture{},
	}
}
