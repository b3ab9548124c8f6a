package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/timeframe"
)

// SiteAll selects every project.
const SiteAll = "all"

var ErrUnknownSite = errors.New("unknown site")

// View selects part of a report.
type View struct {
	Site   string
	Period timeframe.Period
}

// ParseView validates raw query values against the known project ids.
// Empty values select everything.
func ParseView(site, period string, projectIDs []string) (View, error) {
	p, err := timeframe.ParsePeriod(period)
	if err != nil {
		return View{}, err
	}

	site = strings.ToLower(strings.TrimSpace(site))
	if site == "" || site == SiteAll {
		return View{Site: SiteAll, Period: p}, nil
	}
	for _, id := range projectIDs {
		if site == id {
			return View{Site: site, Period: p}, nil
		}
	}
	return View{}, fmt.Errorf("%w %q", ErrUnknownSite, site)
}

// Filter returns the part of report selected by v. Sessions are matched by
// site and by last activity within the period ending at now; stats rows are
// matched by site only. The input report is not modified.
func Filter(report Report, v View, now time.Time) Report {
	frame := timeframe.For(v.Period, now)
	out := report
	out.Sessions = make([]aggregation.SessionSummary, 0, len(report.Sessions))
	for _, s := range report.Sessions {
		if !siteMatches(v.Site, s.ProjectID) {
			continue
		}
		if !frame.From.IsZero() && s.LastActive.Before(frame.From) {
			continue
		}
		out.Sessions = append(out.Sessions, s)
	}

	out.SiteStats = make([]aggregation.SiteStats, 0, len(report.SiteStats))
	for _, st := range report.SiteStats {
		if siteMatches(v.Site, st.ProjectID) {
			out.SiteStats = append(out.SiteStats, st)
		}
	}
	return out
}

func siteMatches(site, projectID string) bool {
	return site == "" || site == SiteAll || site == projectID
}
