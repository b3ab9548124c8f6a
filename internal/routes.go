package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "topicmingle/api/v1"
	"topicmingle/internal/config"
	"topicmingle/internal/http"
	"topicmingle/internal/http/middleware"
)

// publicCORSConfig is shared by every tracker endpoint; the tracker runs on
// other origins.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

func noContent(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}

// MountRoutes returns the route mount function for the given services.
func MountRoutes(svc *Services) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		cfg := config.GetConfig()
		logger := srv.GetLogger()

		// Rate limiting would interfere with tests, so it only applies in
		// production.
		conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
			return func(c *fiber.Ctx) error {
				if cfg.IsProduction() {
					return limiter(c)
				}
				return c.Next()
			}
		}

		// 70/min per IP covers a tracker heartbeat plus page views and clicks.
		trackerRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(70),
			cartridgemiddleware.WithDuration(time.Minute),
		))

		adminRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(30),
			cartridgemiddleware.WithDuration(time.Minute),
		))

		trackerConfig := &cartridge.RouteConfig{
			EnableCORS:       true,
			CustomMiddleware: []fiber.Handler{middleware.TrackerFetchSite(), trackerRateLimiter},
			CORSConfig:       publicCORSConfig,
		}

		adminConfig := &cartridge.RouteConfig{
			CustomMiddleware: []fiber.Handler{
				adminRateLimiter,
				middleware.AdminTokenAuth(cfg.AdminTokenHash, logger),
			},
		}

		health := http.NewHealthHandler(svc.Pingers)
		analytics := http.NewAnalyticsHandlers(svc.Refresher, svc.ProjectIDs)

		// === SYSTEM ROUTES ===
		srv.Get("/_health", health.IndexAction)
		srv.Head("/_health", health.IndexAction)
		srv.Get("/metrics", http.MetricsAction)

		// === TRACKER ROUTES ===
		srv.Post("/x/api/v1/sessions", v1.UpsertSessionHandler, trackerConfig)
		srv.Options("/x/api/v1/sessions", noContent, trackerConfig)
		srv.Post("/x/api/v1/page_views", v1.CreatePageViewHandler, trackerConfig)
		srv.Options("/x/api/v1/page_views", noContent, trackerConfig)
		srv.Post("/x/api/v1/clicks", v1.CreateClickHandler, trackerConfig)
		srv.Options("/x/api/v1/clicks", noContent, trackerConfig)
		srv.Post("/x/api/v1/email_captures", v1.CreateEmailCaptureHandler, trackerConfig)
		srv.Options("/x/api/v1/email_captures", noContent, trackerConfig)

		// === ADMIN API ROUTES ===
		srv.Get("/admin/api/analytics", analytics.IndexAction, adminConfig)
		srv.Post("/admin/api/analytics/refresh", analytics.RefreshAction, adminConfig)
		srv.Get("/admin/api/analytics/totals", http.TotalsAction, adminConfig)
		srv.Get("/admin/api/email_captures", http.EmailCapturesAction, adminConfig)

		// === ADMIN CATALOG ROUTES ===
		srv.Get("/admin/api/categories", http.ListCategoriesAction, adminConfig)
		srv.Post("/admin/api/categories", http.CreateCategoryAction, adminConfig)
		srv.Put("/admin/api/categories/:id", http.UpdateCategoryAction, adminConfig)
		srv.Delete("/admin/api/categories/:id", http.DeleteCategoryAction, adminConfig)
		srv.Get("/admin/api/blogs", http.ListBlogsAction, adminConfig)
		srv.Post("/admin/api/blogs", http.CreateBlogAction, adminConfig)
		srv.Put("/admin/api/blogs/:id", http.UpdateBlogAction, adminConfig)
		srv.Delete("/admin/api/blogs/:id", http.DeleteBlogAction, adminConfig)
		srv.Get("/admin/api/related_searches", http.ListRelatedSearchesAction, adminConfig)
		srv.Post("/admin/api/related_searches", http.CreateRelatedSearchAction, adminConfig)
		srv.Put("/admin/api/related_searches/:id", http.UpdateRelatedSearchAction, adminConfig)
		srv.Delete("/admin/api/related_searches/:id", http.DeleteRelatedSearchAction, adminConfig)
	}
}
