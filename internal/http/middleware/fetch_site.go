package middleware

import (
	"github.com/gofiber/fiber/v2"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
)

// TrackerFetchSites are the Sec-Fetch-Site values a tracker write may carry.
// The tracker script runs on the blog's own pages and on partner domains.
var TrackerFetchSites = []string{"cross-site", "same-site", "same-origin"}

// TrackerFetchSite rejects tracker writes that did not come from a browser.
// It replaces cartridge's global check, which runs before any per-route
// opt-out and would also block bearer-token admin clients.
func TrackerFetchSite() fiber.Handler {
	return cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: TrackerFetchSites,
	})
}
