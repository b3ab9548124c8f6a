package aggregation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmingle/internal/aggregation"
)

var base = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func classify(raws []aggregation.RawEvent, labels aggregation.Labels) []aggregation.Event {
	return aggregation.ClassifyAll(raws, labels, aggregation.ClassifyOptions{})
}

func TestAggregateRelatedSearchAndVisitNow(t *testing.T) {
	labels := aggregation.Labels{RelatedSearches: map[string]string{"rs1": "Remote Jobs"}}
	events := classify([]aggregation.RawEvent{
		{EventID: "1", SessionID: "s1", EventType: "click", ButtonID: "related-search-jobs", ButtonLabel: "Remote Jobs", RelatedSearchID: "rs1", CreatedAt: base},
		{EventID: "2", SessionID: "s1", EventType: "click", ButtonID: "visit-now-Remote Jobs", CreatedAt: base.Add(time.Minute)},
	}, labels)

	res := aggregation.Aggregate(nil, events)

	require.Len(t, res.Summaries, 1)
	s := res.Summaries[0]
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 2, s.TotalClicks)
	assert.Equal(t, 2, s.UniqueClicks)
	require.Len(t, s.SearchResults, 1)
	assert.Equal(t, aggregation.SearchBreakdown{
		Term:           "Remote Jobs",
		TotalClicks:    1,
		UniqueClicks:   1,
		VisitNowClicks: 1,
		VisitNowUnique: 1,
	}, s.SearchResults[0])
	assert.Empty(t, s.ButtonInteractions)
	assert.Equal(t, base.Add(time.Minute), s.LastActive)
	assert.Equal(t, "1m 0s", s.TimeSpent)
}

func TestAggregatePageViewCasing(t *testing.T) {
	events := classify([]aggregation.RawEvent{
		{EventID: "1", SessionID: "a", EventType: "PAGE_VIEW", PageURL: "/x", CreatedAt: base},
		{EventID: "2", SessionID: "b", EventType: "pageview", PageURL: "/x", CreatedAt: base},
	}, aggregation.Labels{})

	res := aggregation.Aggregate(nil, events)

	require.Len(t, res.Summaries, 2)
	assert.Equal(t, 1, res.Summaries[0].PageViews)
	assert.Equal(t, 1, res.Summaries[1].PageViews)
	assert.Equal(t, 2, res.Stats.PageViews)
	assert.Equal(t, 1, res.Stats.UniquePages, "the same page across sessions is counted once")
}

func TestAggregateDescriptorsMostSpecificWins(t *testing.T) {
	sessions := []aggregation.RawSession{
		{SessionID: "s1", Country: "WW", Source: "direct", LastActive: base},
	}
	events := classify([]aggregation.RawEvent{
		{EventID: "1", SessionID: "s1", EventType: "page_view", Country: "US", Source: "google", IPAddress: "1.2.3.4", Device: "Mobile • Safari", CreatedAt: base.Add(time.Second)},
		{EventID: "2", SessionID: "s1", EventType: "page_view", Country: "Unknown", Source: "", IPAddress: "unknown", CreatedAt: base.Add(2 * time.Second)},
	}, aggregation.Labels{})

	res := aggregation.Aggregate(sessions, events)

	require.Len(t, res.Summaries, 1)
	s := res.Summaries[0]
	assert.Equal(t, "US", s.Country)
	assert.Equal(t, "google", s.Source)
	assert.Equal(t, "1.2.3.4", s.IPAddress)
	assert.Equal(t, "Mobile • Safari", s.Device)
}

func TestAggregateDefaults(t *testing.T) {
	res := aggregation.Aggregate([]aggregation.RawSession{{SessionID: "s1"}}, nil)

	require.Len(t, res.Summaries, 1)
	s := res.Summaries[0]
	assert.Equal(t, aggregation.DefaultIP, s.IPAddress)
	assert.Equal(t, aggregation.DefaultCountry, s.Country)
	assert.Equal(t, aggregation.DefaultSource, s.Source)
	assert.Equal(t, aggregation.DefaultDevice, s.Device)
	assert.Equal(t, "0s", s.TimeSpent)
	assert.True(t, s.LastActive.IsZero(), "no wall-clock default")
	assert.NotNil(t, s.SearchResults)
	assert.NotNil(t, s.BlogClicks)
	assert.NotNil(t, s.ButtonInteractions)
}

func TestAggregateSessionDeviceFromUserAgent(t *testing.T) {
	res := aggregation.Aggregate([]aggregation.RawSession{{
		SessionID: "s1",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1",
	}}, nil)

	assert.Equal(t, "Mobile • Safari", res.Summaries[0].Device)
}

func TestAggregateUniqueActors(t *testing.T) {
	events := classify([]aggregation.RawEvent{
		{EventID: "1", SessionID: "s1", EventType: "click", ButtonID: "cta", ButtonLabel: "Subscribe", IPAddress: "1.1.1.1"},
		{EventID: "2", SessionID: "s1", EventType: "click", ButtonID: "cta", ButtonLabel: "Subscribe", IPAddress: "1.1.1.1"},
		{EventID: "3", SessionID: "s1", EventType: "click", ButtonID: "cta", ButtonLabel: "Subscribe", IPAddress: "2.2.2.2"},
		{EventID: "4", SessionID: "s2", EventType: "click", ButtonID: "blog-card-1", ButtonLabel: "Post"},
		{EventID: "5", SessionID: "s2", EventType: "click", ButtonID: "blog-card-1", ButtonLabel: "Post"},
	}, aggregation.Labels{})

	res := aggregation.Aggregate(nil, events)

	require.Len(t, res.Summaries, 2)
	assert.Equal(t, []aggregation.ButtonBreakdown{{Label: "Subscribe", Total: 3, Unique: 2}}, res.Summaries[0].ButtonInteractions)
	assert.Equal(t, 1, res.Summaries[0].UniqueClicks)
	assert.Equal(t, []aggregation.BlogBreakdown{{Title: "Post", TotalClicks: 2, UniqueClicks: 1}}, res.Summaries[1].BlogClicks, "session id stands in for an unknown IP")
	assert.Equal(t, 5, res.Stats.TotalClicks)
	assert.Equal(t, 2, res.Stats.UniqueClicks)
}

func TestAggregateBreakdownOrderIsFirstSeen(t *testing.T) {
	events := classify([]aggregation.RawEvent{
		{SessionID: "s1", EventType: "click", ButtonID: "b", ButtonLabel: "Zeta"},
		{SessionID: "s1", EventType: "click", ButtonID: "a", ButtonLabel: "Alpha"},
		{SessionID: "s1", EventType: "click", ButtonID: "b", ButtonLabel: "Zeta"},
	}, aggregation.Labels{})

	res := aggregation.Aggregate(nil, events)

	buttons := res.Summaries[0].ButtonInteractions
	require.Len(t, buttons, 2)
	assert.Equal(t, "Zeta", buttons[0].Label)
	assert.Equal(t, "Alpha", buttons[1].Label)
}

func TestAggregateSentinelStillCountsAsClick(t *testing.T) {
	events := classify([]aggregation.RawEvent{
		{SessionID: "s1", EventType: "click", ButtonID: "unknown-button"},
		{SessionID: "s1", EventType: "click"},
	}, aggregation.Labels{})

	res := aggregation.Aggregate(nil, events)

	s := res.Summaries[0]
	assert.Equal(t, 2, s.TotalClicks)
	assert.Equal(t, 2, s.UniqueClicks)
	assert.Empty(t, s.ButtonInteractions)
}

func TestAggregateRelatedSearchViews(t *testing.T) {
	labels := aggregation.Labels{RelatedSearches: map[string]string{"rs1": "Remote Jobs"}}
	events := classify([]aggregation.RawEvent{
		{EventID: "1", SessionID: "s1", EventType: "page_view", RelatedSearchID: "rs1", PageURL: "/search/remote-jobs"},
		{EventID: "2", SessionID: "s1", EventType: "click", ButtonID: "related-search-jobs", RelatedSearchID: "rs1"},
	}, labels)

	res := aggregation.Aggregate(nil, events)

	require.Len(t, res.Summaries[0].SearchResults, 1)
	assert.Equal(t, 1, res.Summaries[0].SearchResults[0].Views)
	assert.Equal(t, 1, res.Summaries[0].SearchResults[0].TotalClicks)
}

func TestAggregateIsIdempotent(t *testing.T) {
	raws := []aggregation.RawEvent{
		{EventID: "1", SessionID: "s1", EventType: "page_view", PageURL: "/a", CreatedAt: base},
		{EventID: "2", SessionID: "s2", EventType: "click", ButtonID: "cta", CreatedAt: base},
		{EventID: "3", SessionID: "s1", EventType: "click", ButtonID: "blog-card-1", BlogID: "b1", CreatedAt: base.Add(time.Hour)},
	}
	sessions := []aggregation.RawSession{{SessionID: "s3", LastActive: base}}

	first := aggregation.Aggregate(sessions, classify(raws, aggregation.Labels{}))
	second := aggregation.Aggregate(sessions, classify(raws, aggregation.Labels{}))

	assert.Equal(t, first, second)
}

func TestAggregateUniqueBounds(t *testing.T) {
	var raws []aggregation.RawEvent
	types := []string{"page_view", "click", "button_click", "view", "other"}
	for i := 0; i < 40; i++ {
		raws = append(raws, aggregation.RawEvent{
			SessionID: []string{"s1", "s2", "s3"}[i%3],
			EventType: types[i%len(types)],
			ButtonID:  []string{"", "cta", "related-search-x", "visit-now-x"}[i%4],
			PageURL:   []string{"", "/a", "/b"}[i%3],
		})
	}

	res := aggregation.Aggregate(nil, classify(raws, aggregation.Labels{}))

	for _, s := range res.Summaries {
		assert.LessOrEqual(t, s.UniqueClicks, s.TotalClicks, s.SessionID)
		assert.LessOrEqual(t, s.UniquePages, s.PageViews, s.SessionID)
	}
	assert.LessOrEqual(t, res.Stats.UniqueClicks, res.Stats.TotalClicks)
	assert.LessOrEqual(t, res.Stats.UniquePages, res.Stats.PageViews)
}

func TestFormatTimeSpent(t *testing.T) {
	assert.Equal(t, "0s", aggregation.FormatTimeSpent(0))
	assert.Equal(t, "0s", aggregation.FormatTimeSpent(-time.Second))
	assert.Equal(t, "0m 45s", aggregation.FormatTimeSpent(45*time.Second))
	assert.Equal(t, "2m 5s", aggregation.FormatTimeSpent(125*time.Second))
}
