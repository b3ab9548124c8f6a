// Package projects adapts each backend project's store to the shared
// aggregation engine.
package projects

import (
	"context"
	"fmt"
	"log/slog"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/timeframe"
)

// Info identifies a project and how the dashboard presents it.
type Info struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

var (
	TopicMingle = Info{ID: "main", Name: "TopicMingle", Icon: "Palette", Color: "from-cyan-500 to-cyan-600"}
	DataOrbit   = Info{ID: "dataorbitzone", Name: "DataOrbitZone", Icon: "ShoppingCart", Color: "from-orange-500 to-orange-600"}
	Search      = Info{ID: "searchproject", Name: "SearchProject", Icon: "Home", Color: "from-pink-500 to-pink-600"}
)

// Project produces the aggregated view of one backend.
type Project interface {
	Info() Info
	Load(ctx context.Context, window timeframe.TimeFrame) (aggregation.Result, error)
}

// EventStore is a raw event backend.
type EventStore interface {
	ListSessions(ctx context.Context, window timeframe.TimeFrame) ([]aggregation.RawSession, error)
	ListEvents(ctx context.Context, window timeframe.TimeFrame) ([]aggregation.RawEvent, error)
	aggregation.LabelSource
}

// ProjectError reports a failed load of one project.
type ProjectError struct {
	Project string
	Op      string
	Err     error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Project, e.Op, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

// EventProjectOptions tunes an EventProject to its schema.
type EventProjectOptions struct {
	Classify aggregation.ClassifyOptions
	// KnownSessionsOnly drops events whose session is not in the session
	// listing.
	KnownSessionsOnly bool
}

// EventProject runs the shared pipeline over an EventStore: list, resolve
// labels in bulk, classify, aggregate.
type EventProject struct {
	info   Info
	store  EventStore
	opts   EventProjectOptions
	logger *slog.Logger
}

func NewEventProject(info Info, store EventStore, opts EventProjectOptions, logger *slog.Logger) *EventProject {
	return &EventProject{info: info, store: store, opts: opts, logger: logger}
}

func (p *EventProject) Info() Info {
	return p.info
}

func (p *EventProject) Load(ctx context.Context, window timeframe.TimeFrame) (aggregation.Result, error) {
	sessions, err := p.store.ListSessions(ctx, window)
	if err != nil {
		return aggregation.Result{}, &ProjectError{Project: p.info.Name, Op: "list sessions", Err: err}
	}

	raws, err := p.store.ListEvents(ctx, window)
	if err != nil {
		return aggregation.Result{}, &ProjectError{Project: p.info.Name, Op: "list events", Err: err}
	}

	if p.opts.KnownSessionsOnly {
		raws = knownSessionEvents(sessions, raws)
	}

	labels, err := aggregation.ResolveLabels(ctx, p.store, aggregation.CollectLabelRequest(raws))
	if err != nil {
		p.logger.Warn("Label lookup failed, using raw labels",
			slog.String("project", p.info.Name),
			slog.Any("error", err))
	}

	events := aggregation.ClassifyAll(raws, labels, p.opts.Classify)
	return Tag(p.info, aggregation.Aggregate(sessions, events)), nil
}

func knownSessionEvents(sessions []aggregation.RawSession, raws []aggregation.RawEvent) []aggregation.RawEvent {
	known := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		known[s.SessionID] = struct{}{}
	}
	kept := raws[:0:0]
	for _, raw := range raws {
		if _, ok := known[raw.SessionID]; ok {
			kept = append(kept, raw)
		}
	}
	return kept
}

// Tag stamps project identity onto every summary and the stats row.
func Tag(info Info, res aggregation.Result) aggregation.Result {
	for i := range res.Summaries {
		res.Summaries[i].ProjectID = info.ID
		res.Summaries[i].Project = info.Name
		res.Summaries[i].ProjectIcon = info.Icon
		res.Summaries[i].ProjectColor = info.Color
	}
	res.Stats.ProjectID = info.ID
	res.Stats.ProjectName = info.Name
	res.Stats.Icon = info.Icon
	res.Stats.Color = info.Color
	return res
}

// EmptyStats is the zeroed stats row of a project that could not be loaded.
func EmptyStats(info Info) aggregation.SiteStats {
	return Tag(info, aggregation.Result{}).Stats
}
