package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LabelRequest lists the distinct foreign ids referenced by a batch.
type LabelRequest struct {
	RelatedSearchIDs []string
	BlogIDs          []string
}

// Empty reports whether no lookup is needed at all.
func (r LabelRequest) Empty() bool {
	return len(r.RelatedSearchIDs) == 0 && len(r.BlogIDs) == 0
}

// Labels maps foreign ids to their display labels.
type Labels struct {
	RelatedSearches map[string]string
	Blogs           map[string]string
}

// RelatedSearch returns the term for id, falling back to the row's own label.
func (l Labels) RelatedSearch(id, fallback string) string {
	return lookupLabel(l.RelatedSearches, id, fallback)
}

// Blog returns the title for id, falling back to the row's own label.
func (l Labels) Blog(id, fallback string) string {
	return lookupLabel(l.Blogs, id, fallback)
}

func lookupLabel(m map[string]string, id, fallback string) string {
	if id != "" {
		if label, ok := m[id]; ok && strings.TrimSpace(label) != "" {
			return label
		}
	}
	if knownValue(fallback, DefaultLabel) {
		return strings.TrimSpace(fallback)
	}
	return DefaultLabel
}

// CollectLabelRequest gathers the distinct non-empty ids of a batch in
// first-seen order. Blog titles only label clicks, so page views contribute
// no blog ids.
func CollectLabelRequest(events []RawEvent) LabelRequest {
	var req LabelRequest
	seenSearches := make(map[string]struct{})
	seenBlogs := make(map[string]struct{})

	for _, ev := range events {
		if id := strings.TrimSpace(ev.RelatedSearchID); id != "" {
			if _, ok := seenSearches[id]; !ok {
				seenSearches[id] = struct{}{}
				req.RelatedSearchIDs = append(req.RelatedSearchIDs, id)
			}
		}
		if IsPageView(ev.EventType) && !IsClick(ev.EventType, ClassifyOptions{ButtonIsClick: true}) {
			continue
		}
		if id := strings.TrimSpace(ev.BlogID); id != "" {
			if _, ok := seenBlogs[id]; !ok {
				seenBlogs[id] = struct{}{}
				req.BlogIDs = append(req.BlogIDs, id)
			}
		}
	}
	return req
}

// LabelSource performs one bulk lookup per entity type.
type LabelSource interface {
	RelatedSearchLabels(ctx context.Context, ids []string) (map[string]string, error)
	BlogLabels(ctx context.Context, ids []string) (map[string]string, error)
}

// ResolveLabels issues at most one lookup per entity type and none for an
// empty id set. A failed lookup leaves its map empty so rows fall back to
// their own labels; the error is returned for logging only.
func ResolveLabels(ctx context.Context, src LabelSource, req LabelRequest) (Labels, error) {
	labels := Labels{
		RelatedSearches: map[string]string{},
		Blogs:           map[string]string{},
	}
	var errs []error

	if len(req.RelatedSearchIDs) > 0 {
		m, err := src.RelatedSearchLabels(ctx, req.RelatedSearchIDs)
		if err != nil {
			errs = append(errs, fmt.Errorf("related search labels: %w", err))
		} else if m != nil {
			labels.RelatedSearches = m
		}
	}

	if len(req.BlogIDs) > 0 {
		m, err := src.BlogLabels(ctx, req.BlogIDs)
		if err != nil {
			errs = append(errs, fmt.Errorf("blog labels: %w", err))
		} else if m != nil {
			labels.Blogs = m
		}
	}

	return labels, errors.Join(errs...)
}
