package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "blogstats/api/v1"
	"blogstats/internal/config"
	"blogstats/internal/http"
	"blogstats/internal/http/middleware"
	"blogstats/internal/settings"
)

// publicCORSConfig is shared by the tracking endpoints, which blog pages call
// from any origin the blog is served on.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()

	// Rate limiting only applies in production; it would interfere with tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP covers a reader clicking through posts.
	trackRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// The admin UI polls live stats every 5s and the dashboard every 30s.
	queryRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{trackRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	queryAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			queryRateLimiter,
			middleware.QueryTokenAuth(cfg.QueryTokenHash, logger),
		},
	}

	settingsCache := settings.NewCache(srv.GetDBManager().GetConnection(), logger, cfg.SettingsCacheTTL())
	trackHandler := v1.NewTrackHandler(settingsCache)
	analyticsHandler := http.NewAnalyticsHandler(settingsCache)

	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	srv.Post("/api/analytics/track", trackHandler.Create, publicAPIConfig)
	srv.Options("/api/analytics/track", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	srv.Get("/api/analytics", analyticsHandler.Index, queryAPIConfig)
}
