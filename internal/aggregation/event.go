// Package aggregation turns raw clickstream rows into per-session summaries.
//
// Store adapters map their rows to RawEvent and RawSession values. Classify
// decides the kind of every event once, and Aggregate reduces the classified
// events into SessionSummary values and a SiteStats row.
package aggregation

import (
	"strings"
	"time"
)

// Defaults applied when a row carries no usable value.
const (
	DefaultIP      = "unknown"
	DefaultCountry = "WW"
	DefaultSource  = "direct"
	DefaultDevice  = "unknown"
	DefaultLabel   = "Unknown"
)

// Identifier prefixes written by the tracker for the buttons we break down.
const (
	RelatedSearchPrefix = "related-search-"
	VisitNowPrefix      = "visit-now-"
	BlogCardPrefix      = "blog-card-"

	unknownButton = "unknown-button"
)

// RawEvent is one event row as read from a project store. Optional columns
// are empty strings when absent.
type RawEvent struct {
	EventID         string    `json:"event_id" yaml:"event_id"`
	SessionID       string    `json:"session_id" yaml:"session_id"`
	EventType       string    `json:"event_type" yaml:"event_type"`
	ButtonID        string    `json:"button_id,omitempty" yaml:"button_id"`
	ButtonLabel     string    `json:"button_label,omitempty" yaml:"button_label"`
	RelatedSearchID string    `json:"related_search_id,omitempty" yaml:"related_search_id"`
	BlogID          string    `json:"blog_id,omitempty" yaml:"blog_id"`
	IPAddress       string    `json:"ip_address,omitempty" yaml:"ip_address"`
	Country         string    `json:"country,omitempty" yaml:"country"`
	Device          string    `json:"device,omitempty" yaml:"device"`
	Source          string    `json:"source,omitempty" yaml:"source"`
	PageURL         string    `json:"page_url,omitempty" yaml:"page_url"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// RawSession is one session row as read from a project store.
type RawSession struct {
	SessionID  string    `json:"session_id" yaml:"session_id"`
	IPAddress  string    `json:"ip_address,omitempty" yaml:"ip_address"`
	Country    string    `json:"country,omitempty" yaml:"country"`
	Source     string    `json:"source,omitempty" yaml:"source"`
	UserAgent  string    `json:"user_agent,omitempty" yaml:"user_agent"`
	LastActive time.Time `json:"last_active" yaml:"last_active"`
}

// Kind is the closed set of event kinds the aggregator understands.
type Kind uint8

const (
	KindNone Kind = iota
	KindPageView
	KindRelatedSearchClick
	KindVisitNowClick
	KindBlogClick
	KindOtherClick
)

func (k Kind) String() string {
	switch k {
	case KindPageView:
		return "page-view"
	case KindRelatedSearchClick:
		return "related-search-click"
	case KindVisitNowClick:
		return "visit-now-click"
	case KindBlogClick:
		return "blog-click"
	case KindOtherClick:
		return "other-click"
	default:
		return "none"
	}
}

// IsClickBucket reports whether the kind routes a click into a breakdown.
func (k Kind) IsClickBucket() bool {
	return k >= KindRelatedSearchClick
}

// Event is the common shape every store adapter produces. The kind is fixed
// when the event is built and never re-derived from identifiers later.
type Event struct {
	ID        string
	SessionID string

	// Kind is the click bucket for clicks, KindPageView for plain page views
	// and KindNone for everything else, including suppressed clicks.
	Kind Kind
	// Label is the term, blog title or button label of the click bucket.
	Label string

	PageView bool
	Click    bool

	// ViewedSearch is the related search term shown by a page view, if any.
	ViewedSearch string

	PageKey  string
	ClickKey string

	IPAddress string
	Country   string
	Device    string
	Source    string
	Timestamp time.Time
}

// knownValue reports whether v carries information beyond a placeholder.
func knownValue(v string, placeholders ...string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, p := range placeholders {
		if strings.EqualFold(v, p) {
			return false
		}
	}
	return true
}

func knownIP(ip string) bool {
	return knownValue(ip, DefaultIP, "n/a")
}

func knownCountry(country string) bool {
	return knownValue(country, DefaultCountry, DefaultLabel)
}

func knownSource(source string) bool {
	return knownValue(source, DefaultSource)
}

func knownDevice(device string) bool {
	return knownValue(device, DefaultDevice)
}
