package aggregation

import (
	"strings"

	"github.com/mssola/useragent"
)

// knownBrowsers are the browser names rendered as-is; anything else is "Other".
var knownBrowsers = map[string]bool{
	"Chrome":            true,
	"Edge":              true,
	"Firefox":           true,
	"Internet Explorer": true,
	"Opera":             true,
	"Safari":            true,
}

// DescribeDevice renders a user agent as "Mobile • Safari" style text. It
// returns an empty string when the user agent is empty.
func DescribeDevice(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)

	class := "Desktop"
	switch {
	case ua.Platform() == "iPad" || strings.Contains(strings.ToLower(userAgent), "tablet"):
		class = "Tablet"
	case ua.Mobile():
		class = "Mobile"
	}

	browser, _ := ua.Browser()
	if !knownBrowsers[browser] {
		browser = "Other"
	}
	return class + " • " + browser
}
