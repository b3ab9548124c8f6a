// Package referrers derives a traffic source slug for sessions whose
// tracker payload carries none.
package referrers

import (
	"net/url"
	"strings"
)

// Direct is the source of visits with no usable referrer.
const Direct = "direct"

// Referrer hostnames mapped to source slugs.
var knownReferrers = map[string]string{
	// Search engines
	"google.com":     "google",
	"google.co.uk":   "google",
	"google.de":      "google",
	"google.fr":      "google",
	"google.es":      "google",
	"google.ca":      "google",
	"google.com.au":  "google",
	"bing.com":       "bing",
	"duckduckgo.com": "duckduckgo",
	"yahoo.com":      "yahoo",
	"yandex.ru":      "yandex",
	"ecosia.org":     "ecosia",

	// Social and content networks
	"x.com":           "x",
	"twitter.com":     "x",
	"t.co":            "x",
	"facebook.com":    "facebook",
	"fb.com":          "facebook",
	"instagram.com":   "instagram",
	"linkedin.com":    "linkedin",
	"lnkd.in":         "linkedin",
	"tiktok.com":      "tiktok",
	"pinterest.com":   "pinterest",
	"reddit.com":      "reddit",
	"youtube.com":     "youtube",
	"youtu.be":        "youtube",
	"snapchat.com":    "snapchat",
	"whatsapp.com":    "whatsapp",
	"t.me":            "telegram",
	"telegram.org":    "telegram",
	"quora.com":       "quora",
	"medium.com":      "medium",
	"taboola.com":     "taboola",
	"outbrain.com":    "outbrain",
	"mail.google.com": "gmail",
}

// Ad click ids that mark paid traffic when no utm_source is present.
var clickIDs = []struct{ param, source string }{
	{"gclid", "google_ads"},
	{"fbclid", "facebook_ads"},
	{"msclkid", "bing_ads"},
	{"ttclid", "tiktok_ads"},
}

// Source resolves the source of a landing. An explicit utm_source on the
// landing URL wins, then an ad click id, then the referrer host. Referrers
// from selfHost are internal navigation and count as direct.
func Source(landingURL, referrer, selfHost string) string {
	if u, err := url.Parse(strings.TrimSpace(landingURL)); err == nil {
		q := u.Query()
		if s := slug(q.Get("utm_source")); s != "" {
			return s
		}
		for _, id := range clickIDs {
			if q.Get(id.param) != "" {
				return id.source
			}
		}
	}

	ref, err := url.Parse(strings.TrimSpace(referrer))
	if err != nil || ref.Hostname() == "" {
		return Direct
	}
	host := strings.TrimPrefix(strings.ToLower(ref.Hostname()), "www.")
	if selfHost != "" && host == strings.TrimPrefix(strings.ToLower(selfHost), "www.") {
		return Direct
	}
	return FromHost(host)
}

// FromHost maps a referrer hostname to its source slug. Unknown hosts keep
// their name with the www. prefix removed.
func FromHost(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(hostname), "www.")

	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	// Subdomains of a known referrer (m.facebook.com, l.instagram.com)
	for domain, name := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	if hostname == "" {
		return Direct
	}
	return hostname
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
