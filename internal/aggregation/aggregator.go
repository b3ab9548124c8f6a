package aggregation

import (
	"fmt"
	"time"
)

type set map[string]struct{}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

// Accumulator holds the running state of one aggregation pass, including
// the project-wide unique page and click sets. It is not safe for
// concurrent use; each pass owns its own accumulator.
type Accumulator struct {
	sessions     map[string]*sessionState
	order        []string
	uniquePages  set
	uniqueClicks set
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		sessions:     make(map[string]*sessionState),
		uniquePages:  make(set),
		uniqueClicks: make(set),
	}
}

type searchTally struct {
	term           string
	views          int
	clicks         int
	clickActors    set
	visitNow       int
	visitNowActors set
}

type countTally struct {
	label  string
	total  int
	actors set
}

type sessionState struct {
	id      string
	ip      string
	country string
	device  string
	source  string

	firstSeen  time.Time
	lastActive time.Time

	pageViews   int
	totalClicks int
	pages       set
	clicks      set

	searchIndex map[string]int
	searches    []*searchTally
	blogIndex   map[string]int
	blogs       []*countTally
	buttonIndex map[string]int
	buttons     []*countTally
}

func (a *Accumulator) session(id string) *sessionState {
	if s, ok := a.sessions[id]; ok {
		return s
	}
	s := &sessionState{
		id:          id,
		pages:       make(set),
		clicks:      make(set),
		searchIndex: make(map[string]int),
		blogIndex:   make(map[string]int),
		buttonIndex: make(map[string]int),
	}
	a.sessions[id] = s
	a.order = append(a.order, id)
	return s
}

// AddSession seeds a session entry from a session row. Sessions without
// events still produce a summary.
func (a *Accumulator) AddSession(raw RawSession) {
	if raw.SessionID == "" {
		return
	}
	s := a.session(raw.SessionID)
	s.ip = prefer(s.ip, raw.IPAddress, knownIP)
	s.country = prefer(s.country, raw.Country, knownCountry)
	s.source = prefer(s.source, raw.Source, knownSource)
	s.device = prefer(s.device, DescribeDevice(raw.UserAgent), knownDevice)
	s.touch(raw.LastActive)
}

// AddEvent folds one classified event into its session.
func (a *Accumulator) AddEvent(ev Event) {
	if ev.SessionID == "" {
		return
	}
	s := a.session(ev.SessionID)
	s.ip = prefer(s.ip, ev.IPAddress, knownIP)
	s.country = prefer(s.country, ev.Country, knownCountry)
	s.source = prefer(s.source, ev.Source, knownSource)
	s.device = prefer(s.device, ev.Device, knownDevice)
	s.touch(ev.Timestamp)

	actor := s.actor(ev.IPAddress)

	if ev.PageView {
		s.pageViews++
		s.pages.add(ev.PageKey)
		a.uniquePages.add(ev.PageKey)
		if ev.ViewedSearch != "" {
			s.search(ev.ViewedSearch).views++
		}
	}

	if !ev.Click {
		return
	}

	s.totalClicks++
	key := ev.ClickKey
	if key == "" {
		key = fmt.Sprintf("click-%s-%d", s.id, s.totalClicks)
	}
	s.clicks.add(key)
	a.uniqueClicks.add(key)

	switch ev.Kind {
	case KindRelatedSearchClick:
		t := s.search(ev.Label)
		t.clicks++
		t.clickActors.add(actor)
	case KindVisitNowClick:
		t := s.search(ev.Label)
		t.visitNow++
		t.visitNowActors.add(actor)
	case KindBlogClick:
		t := tally(&s.blogs, s.blogIndex, ev.Label)
		t.total++
		t.actors.add(actor)
	case KindOtherClick:
		t := tally(&s.buttons, s.buttonIndex, ev.Label)
		t.total++
		t.actors.add(actor)
	}
}

// Result finalizes sets into counts and breakdown maps into first-seen
// ordered lists. Summaries come out in first-seen session order.
func (a *Accumulator) Result() Result {
	res := Result{Summaries: make([]SessionSummary, 0, len(a.order))}
	for _, id := range a.order {
		summary := a.sessions[id].summary()
		res.Stats.PageViews += summary.PageViews
		res.Stats.TotalClicks += summary.TotalClicks
		res.Summaries = append(res.Summaries, summary)
	}
	res.Stats.SessionCount = len(res.Summaries)
	res.Stats.UniquePages = len(a.uniquePages)
	res.Stats.UniqueClicks = len(a.uniqueClicks)
	return res
}

// Aggregate reduces one project's sessions and classified events.
func Aggregate(sessions []RawSession, events []Event) Result {
	acc := NewAccumulator()
	for _, s := range sessions {
		acc.AddSession(s)
	}
	for _, ev := range events {
		acc.AddEvent(ev)
	}
	return acc.Result()
}

func prefer(current, candidate string, known func(string) bool) string {
	if known(candidate) {
		return candidate
	}
	if current == "" {
		return candidate
	}
	return current
}

func (s *sessionState) touch(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if s.firstSeen.IsZero() || ts.Before(s.firstSeen) {
		s.firstSeen = ts
	}
	if ts.After(s.lastActive) {
		s.lastActive = ts
	}
}

// actor identifies the visitor for unique counts: the event IP, then the
// session IP, then the session id.
func (s *sessionState) actor(eventIP string) string {
	if knownIP(eventIP) {
		return eventIP
	}
	if knownIP(s.ip) {
		return s.ip
	}
	return s.id
}

func (s *sessionState) search(term string) *searchTally {
	if i, ok := s.searchIndex[term]; ok {
		return s.searches[i]
	}
	t := &searchTally{term: term, clickActors: make(set), visitNowActors: make(set)}
	s.searchIndex[term] = len(s.searches)
	s.searches = append(s.searches, t)
	return t
}

func tally(list *[]*countTally, index map[string]int, label string) *countTally {
	if i, ok := index[label]; ok {
		return (*list)[i]
	}
	t := &countTally{label: label, actors: make(set)}
	index[label] = len(*list)
	*list = append(*list, t)
	return t
}

func orDefault(v string, known func(string) bool, def string) string {
	if known(v) {
		return v
	}
	return def
}

func (s *sessionState) summary() SessionSummary {
	out := SessionSummary{
		SessionID:          s.id,
		Device:             orDefault(s.device, knownDevice, DefaultDevice),
		IPAddress:          orDefault(s.ip, knownIP, DefaultIP),
		Country:            orDefault(s.country, knownCountry, DefaultCountry),
		Source:             orDefault(s.source, knownSource, DefaultSource),
		TimeSpent:          FormatTimeSpent(s.lastActive.Sub(s.firstSeen)),
		PageViews:          s.pageViews,
		UniquePages:        len(s.pages),
		TotalClicks:        s.totalClicks,
		UniqueClicks:       len(s.clicks),
		SearchResults:      make([]SearchBreakdown, 0, len(s.searches)),
		BlogClicks:         make([]BlogBreakdown, 0, len(s.blogs)),
		ButtonInteractions: make([]ButtonBreakdown, 0, len(s.buttons)),
		LastActive:         s.lastActive,
	}
	for _, t := range s.searches {
		out.SearchResults = append(out.SearchResults, SearchBreakdown{
			Term:           t.term,
			Views:          t.views,
			TotalClicks:    t.clicks,
			UniqueClicks:   len(t.clickActors),
			VisitNowClicks: t.visitNow,
			VisitNowUnique: len(t.visitNowActors),
		})
	}
	for _, t := range s.blogs {
		out.BlogClicks = append(out.BlogClicks, BlogBreakdown{
			Title:        t.label,
			TotalClicks:  t.total,
			UniqueClicks: len(t.actors),
		})
	}
	for _, t := range s.buttons {
		out.ButtonInteractions = append(out.ButtonInteractions, ButtonBreakdown{
			Label:  t.label,
			Total:  t.total,
			Unique: len(t.actors),
		})
	}
	return out
}
