package aggregation

import (
	"strings"
)

const visitNowLabelPrefix = "visit now:"

// ClassifyOptions carries the per-schema differences of the click predicate.
type ClassifyOptions struct {
	// ButtonIsClick treats event types containing "button" as clicks.
	ButtonIsClick bool
}

// IsPageView reports whether an event type names a page view.
func IsPageView(eventType string) bool {
	t := strings.ToLower(eventType)
	return strings.Contains(t, "page") || strings.Contains(t, "view")
}

// IsClick reports whether an event type names a click.
func IsClick(eventType string, opts ClassifyOptions) bool {
	t := strings.ToLower(eventType)
	if strings.Contains(t, "click") {
		return true
	}
	return opts.ButtonIsClick && strings.Contains(t, "button")
}

// Classify builds the common event for a raw row. Labels must already hold
// the resolved related-search and blog labels of the batch.
func Classify(raw RawEvent, labels Labels, opts ClassifyOptions) Event {
	ev := Event{
		ID:        strings.TrimSpace(raw.EventID),
		SessionID: strings.TrimSpace(raw.SessionID),
		PageView:  IsPageView(raw.EventType),
		Click:     IsClick(raw.EventType, opts),
		IPAddress: strings.TrimSpace(raw.IPAddress),
		Country:   strings.TrimSpace(raw.Country),
		Device:    strings.TrimSpace(raw.Device),
		Source:    strings.TrimSpace(raw.Source),
		Timestamp: raw.CreatedAt,
	}

	if ev.PageView {
		ev.Kind = KindPageView
		ev.PageKey = pageKey(raw)
		if raw.RelatedSearchID != "" {
			ev.ViewedSearch = labels.RelatedSearch(raw.RelatedSearchID, raw.ButtonLabel)
		}
	}

	if ev.Click {
		ev.Kind, ev.Label = classifyClick(raw, labels)
		ev.ClickKey = clickKey(raw)
	}

	return ev
}

// ClassifyAll classifies a batch, preserving order.
func ClassifyAll(raws []RawEvent, labels Labels, opts ClassifyOptions) []Event {
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		events = append(events, Classify(raw, labels, opts))
	}
	return events
}

// classifyClick routes a click into exactly one bucket. The first matching
// rule wins.
func classifyClick(raw RawEvent, labels Labels) (Kind, string) {
	buttonID := strings.TrimSpace(raw.ButtonID)
	label := strings.TrimSpace(raw.ButtonLabel)

	switch {
	case strings.HasPrefix(buttonID, RelatedSearchPrefix) && (raw.RelatedSearchID != "" || label != ""):
		return KindRelatedSearchClick, labels.RelatedSearch(raw.RelatedSearchID, label)
	case strings.HasPrefix(buttonID, VisitNowPrefix):
		return KindVisitNowClick, visitNowTerm(buttonID, label)
	case strings.HasPrefix(buttonID, BlogCardPrefix) && (raw.BlogID != "" || label != ""):
		return KindBlogClick, labels.Blog(raw.BlogID, label)
	}

	key := otherButtonKey(buttonID, label)
	if strings.EqualFold(key, unknownButton) {
		return KindNone, ""
	}
	return KindOtherClick, key
}

// visitNowTerm joins a visit-now click to its related search by display
// string. Two searches sharing a term are conflated; there is no foreign key
// to join on.
func visitNowTerm(buttonID, label string) string {
	if len(label) >= len(visitNowLabelPrefix) && strings.EqualFold(label[:len(visitNowLabelPrefix)], visitNowLabelPrefix) {
		label = strings.TrimSpace(label[len(visitNowLabelPrefix):])
	}
	if knownValue(label, DefaultLabel) {
		return label
	}
	if term := strings.TrimSpace(strings.TrimPrefix(buttonID, VisitNowPrefix)); term != "" {
		return term
	}
	return DefaultLabel
}

func otherButtonKey(buttonID, label string) string {
	if knownValue(label, DefaultLabel) {
		return label
	}
	if buttonID != "" {
		return buttonID
	}
	return unknownButton
}

func pageKey(raw RawEvent) string {
	switch {
	case raw.PageURL != "":
		return raw.PageURL
	case raw.BlogID != "":
		return "blog-" + raw.BlogID
	case raw.EventID != "":
		return "pv-" + raw.EventID
	}
	return ""
}

func clickKey(raw RawEvent) string {
	switch {
	case raw.ButtonID != "":
		return raw.ButtonID
	case raw.RelatedSearchID != "":
		return raw.RelatedSearchID
	case raw.BlogID != "":
		return "blog-" + raw.BlogID
	case raw.ButtonLabel != "":
		return raw.ButtonLabel
	case raw.EventID != "":
		return "click-" + raw.EventID
	}
	return ""
}
