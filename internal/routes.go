package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "beaconly/api/v1"
	"beaconly/internal/config"
	"beaconly/internal/http"
)

// publicCORSConfig is the CORS configuration shared by the public ingestion
// endpoints. Tracking requests arrive from arbitrary origins.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only applies in production; in development and test it
	// would interfere with load tests and the test suite.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70 requests per minute per IP handles legitimate tracking traffic
	// while keeping abusive clients out.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public ingestion config. CORS runs before rate limiting so 429
	// responses still carry CORS headers.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	sdkConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	noContent := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === HEALTH ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC INGESTION ===
	srv.Post("/api/v1/events", v1.CreateEventPublicAPIHandler, publicAPIConfig)
	srv.Options("/api/v1/events", noContent, publicAPIConfig)
	srv.Post("/api/v1/events/batch", v1.CreateEventBatchAPIHandler, publicAPIConfig)
	srv.Options("/api/v1/events/batch", noContent, publicAPIConfig)
	srv.Post("/api/v1/events/beacon", v1.CreateEventBeaconHandler, publicAPIConfig)
	srv.Options("/api/v1/events/beacon", noContent, publicAPIConfig)

	// === READ API ===
	srv.Get("/api/v1/events", v1.ListEventsHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/overview", v1.GetDashboardOverviewHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/metrics", v1.GetDashboardMetricsHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/pageviews", v1.GetDashboardPageViewsHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/top-pages", v1.GetDashboardTopPagesHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/referrers", v1.GetDashboardReferrersHandler, publicAPIConfig)
	srv.Get("/api/v1/dashboard/devices", v1.GetDashboardDevicesHandler, publicAPIConfig)

	// === WEBSITE MANAGEMENT ===
	srv.Get("/api/v1/websites", v1.ListWebsitesHandler, publicAPIConfig)
	srv.Delete("/api/v1/websites/:id", v1.DeleteWebsiteHandler, publicAPIConfig)

	// === SDK DELIVERY ===
	srv.Get("/api/v1/sdk.js", v1.GetSDKAction, sdkConfig)
}
