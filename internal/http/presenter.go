package http

import (
	"strings"
	"sync"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/dashboard"
)

var (
	countriesOnce sync.Once
	countries     *gountries.Query
)

func countryQuery() *gountries.Query {
	countriesOnce.Do(func() {
		countries = gountries.New()
	})
	return countries
}

// SessionView is a session summary with display names resolved.
type SessionView struct {
	aggregation.SessionSummary
	CountryName string `json:"country_name"`
	SourceLabel string `json:"source_label"`
}

// ReportView is the admin analytics response.
type ReportView struct {
	Site        string                  `json:"site"`
	Period      string                  `json:"period"`
	SiteStats   []aggregation.SiteStats `json:"site_stats"`
	Sessions    []SessionView           `json:"sessions"`
	Warnings    []dashboard.Warning     `json:"warnings"`
	Generation  uint64                  `json:"generation"`
	GeneratedAt time.Time               `json:"generated_at"`
}

func presentReport(report dashboard.Report, view dashboard.View) ReportView {
	out := ReportView{
		Site:        view.Site,
		Period:      string(view.Period),
		SiteStats:   report.SiteStats,
		Sessions:    make([]SessionView, 0, len(report.Sessions)),
		Warnings:    report.Warnings,
		Generation:  report.Generation,
		GeneratedAt: report.GeneratedAt,
	}
	if out.Warnings == nil {
		out.Warnings = []dashboard.Warning{}
	}
	for _, s := range report.Sessions {
		out.Sessions = append(out.Sessions, SessionView{
			SessionSummary: s,
			CountryName:    countryName(s.Country),
			SourceLabel:    sourceLabel(s.Source),
		})
	}
	return out
}

// countryName maps an ISO alpha-2 or alpha-3 code to its common name.
func countryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, aggregation.DefaultCountry) || strings.EqualFold(code, "unknown") {
		return "Unknown"
	}
	country, err := countryQuery().FindCountryByAlpha(code)
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

func sourceLabel(source string) string {
	source = strings.TrimSpace(source)
	if source == "" || source == aggregation.DefaultSource {
		return "Direct"
	}
	return cases.Title(language.AmericanEnglish).String(strings.NewReplacer("_", " ", "-", " ").Replace(source))
}
