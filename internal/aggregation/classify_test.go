package aggregation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"topicmingle/internal/aggregation"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		eventType  string
		opts       aggregation.ClassifyOptions
		isPageView bool
		isClick    bool
	}{
		{eventType: "page_view", isPageView: true},
		{eventType: "PAGE_VIEW", isPageView: true},
		{eventType: "pageview", isPageView: true},
		{eventType: "View", isPageView: true},
		{eventType: "click", isClick: true},
		{eventType: "Button_Click", isClick: true},
		{eventType: "button", isClick: false},
		{eventType: "button", opts: aggregation.ClassifyOptions{ButtonIsClick: true}, isClick: true},
		{eventType: "scroll"},
		{eventType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.isPageView, aggregation.IsPageView(tt.eventType))
			assert.Equal(t, tt.isClick, aggregation.IsClick(tt.eventType, tt.opts))
		})
	}
}

func TestClassifyClicks(t *testing.T) {
	labels := aggregation.Labels{
		RelatedSearches: map[string]string{"rs1": "Remote Jobs"},
		Blogs:           map[string]string{"b1": "Ten Tips"},
	}

	tests := []struct {
		name      string
		raw       aggregation.RawEvent
		wantKind  aggregation.Kind
		wantLabel string
	}{
		{
			name:      "related search resolved by id",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "related-search-jobs", RelatedSearchID: "rs1", ButtonLabel: "raw"},
			wantKind:  aggregation.KindRelatedSearchClick,
			wantLabel: "Remote Jobs",
		},
		{
			name:      "related search falls back to row label",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "related-search-jobs", ButtonLabel: "Jobs Near Me"},
			wantKind:  aggregation.KindRelatedSearchClick,
			wantLabel: "Jobs Near Me",
		},
		{
			name:      "related search id missing from lookup and no label",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "related-search-jobs", RelatedSearchID: "rs9"},
			wantKind:  aggregation.KindRelatedSearchClick,
			wantLabel: "Unknown",
		},
		{
			name:      "related search prefix without id or label is another button",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "related-search-jobs"},
			wantKind:  aggregation.KindOtherClick,
			wantLabel: "related-search-jobs",
		},
		{
			name:      "visit now uses tracker label",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "visit-now-Remote Jobs", ButtonLabel: "Visit Now: Remote Jobs"},
			wantKind:  aggregation.KindVisitNowClick,
			wantLabel: "Remote Jobs",
		},
		{
			name:      "visit now without label uses id suffix",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "visit-now-Remote Jobs"},
			wantKind:  aggregation.KindVisitNowClick,
			wantLabel: "Remote Jobs",
		},
		{
			name:      "blog card resolved by id",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "blog-card-1", BlogID: "b1"},
			wantKind:  aggregation.KindBlogClick,
			wantLabel: "Ten Tips",
		},
		{
			name:      "blog card falls back to label",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "blog-card-1", ButtonLabel: "Some Post"},
			wantKind:  aggregation.KindBlogClick,
			wantLabel: "Some Post",
		},
		{
			name:      "other button prefers label",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "cta-1", ButtonLabel: "Subscribe"},
			wantKind:  aggregation.KindOtherClick,
			wantLabel: "Subscribe",
		},
		{
			name:      "other button with placeholder label uses id",
			raw:       aggregation.RawEvent{EventType: "click", ButtonID: "cta-1", ButtonLabel: "Unknown"},
			wantKind:  aggregation.KindOtherClick,
			wantLabel: "cta-1",
		},
		{
			name:     "unknown button sentinel is suppressed",
			raw:      aggregation.RawEvent{EventType: "click", ButtonID: "Unknown-button"},
			wantKind: aggregation.KindNone,
		},
		{
			name:     "click without identifiers is suppressed",
			raw:      aggregation.RawEvent{EventType: "click"},
			wantKind: aggregation.KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := aggregation.Classify(tt.raw, labels, aggregation.ClassifyOptions{})
			assert.True(t, ev.Click)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.wantLabel, ev.Label)
		})
	}
}

func TestClassifyIsExhaustive(t *testing.T) {
	buttonIDs := []string{"", "related-search-a", "visit-now-a", "blog-card-a", "cta", "unknown-button"}
	searchIDs := []string{"", "rs1"}
	blogIDs := []string{"", "b1"}
	labels := []string{"", "Unknown", "Label"}

	for _, buttonID := range buttonIDs {
		for _, searchID := range searchIDs {
			for _, blogID := range blogIDs {
				for _, label := range labels {
					raw := aggregation.RawEvent{
						EventType:       "click",
						ButtonID:        buttonID,
						RelatedSearchID: searchID,
						BlogID:          blogID,
						ButtonLabel:     label,
					}
					ev := aggregation.Classify(raw, aggregation.Labels{}, aggregation.ClassifyOptions{})
					if ev.Kind == aggregation.KindNone {
						assert.Equal(t, "unknown-button", otherKeyFor(buttonID, label), "only the sentinel may be dropped: %+v", raw)
						continue
					}
					assert.True(t, ev.Kind.IsClickBucket(), "%+v", raw)
					assert.NotEmpty(t, ev.Label, "%+v", raw)
				}
			}
		}
	}
}

func otherKeyFor(buttonID, label string) string {
	if label != "" && label != "Unknown" {
		return label
	}
	if buttonID != "" {
		return buttonID
	}
	return "unknown-button"
}

func TestClassifyPageViewKeys(t *testing.T) {
	labels := aggregation.Labels{RelatedSearches: map[string]string{"rs1": "Remote Jobs"}}

	ev := aggregation.Classify(aggregation.RawEvent{EventID: "e1", EventType: "page_view", PageURL: "/blog/a"}, labels, aggregation.ClassifyOptions{})
	assert.Equal(t, aggregation.KindPageView, ev.Kind)
	assert.Equal(t, "/blog/a", ev.PageKey)
	assert.False(t, ev.Click)

	ev = aggregation.Classify(aggregation.RawEvent{EventID: "e2", EventType: "page_view", BlogID: "b1"}, labels, aggregation.ClassifyOptions{})
	assert.Equal(t, "blog-b1", ev.PageKey)

	ev = aggregation.Classify(aggregation.RawEvent{EventID: "e3", EventType: "view"}, labels, aggregation.ClassifyOptions{})
	assert.Equal(t, "pv-e3", ev.PageKey)

	ev = aggregation.Classify(aggregation.RawEvent{EventID: "e4", EventType: "page_view", RelatedSearchID: "rs1"}, labels, aggregation.ClassifyOptions{})
	assert.Equal(t, "Remote Jobs", ev.ViewedSearch)

	ev = aggregation.Classify(aggregation.RawEvent{EventID: "e5", EventType: "scroll"}, labels, aggregation.ClassifyOptions{})
	assert.Equal(t, aggregation.KindNone, ev.Kind)
	assert.False(t, ev.PageView)
	assert.False(t, ev.Click)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "page-view", aggregation.KindPageView.String())
	assert.Equal(t, "related-search-click", aggregation.KindRelatedSearchClick.String())
	assert.Equal(t, "visit-now-click", aggregation.KindVisitNowClick.String())
	assert.Equal(t, "blog-click", aggregation.KindBlogClick.String())
	assert.Equal(t, "other-click", aggregation.KindOtherClick.String())
	assert.Equal(t, "none", aggregation.KindNone.String())
}

func TestDescribeDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"", ""},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1", "Mobile • Safari"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", "Desktop • Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0", "Desktop • Edge"},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 Version/16.0 Safari/604.1", "Tablet • Safari"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Desktop • Firefox"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", "Mobile • Chrome"},
		{"curl/8.0", "Desktop • Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, aggregation.DescribeDevice(tt.ua), tt.ua)
	}
}
