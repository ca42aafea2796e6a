package backend

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ellavondegurechaff/vmq/backend/handlers"
	"github.com/ellavondegurechaff/vmq/backend/middleware"
	"github.com/ellavondegurechaff/vmq/pool"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/metrics"
)

// NewServer builds the API app with its middleware chain and routes.
func NewServer(cfg pool.WebConfig, webApp *handlers.WebApp) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "VMQ Account Pool",
		ServerHeader:          "VMQ",
		ErrorHandler:          middleware.CustomErrorHandler,
		BodyLimit:             config.MaxRequestSize,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.LoggingMiddleware())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	setupRoutes(app, webApp, middleware.RateLimit(cfg.RateLimit, cfg.RateWindow.Duration))
	return app
}

// setupRoutes registers the pool routes under their original paths and
// under /api.
func setupRoutes(app *fiber.App, webApp *handlers.WebApp, limiter fiber.Handler) {
	app.Get("/health", handlers.HealthCheck(webApp))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "VMQ Account Pool API",
			"version": webApp.Version,
			"status":  "running",
		})
	})

	// routes registered above are not limited
	app.Use(limiter)

	app.Post("/add_accounts", handlers.AddAccounts(webApp))
	app.Get("/stats", handlers.Stats(webApp))
	app.Post("/extract", handlers.Allocate(webApp))
	app.Get("/export", handlers.Export(webApp))

	api := app.Group("/api")
	api.Post("/accounts", handlers.AddAccounts(webApp))
	api.Get("/stats", handlers.Stats(webApp))
	api.Post("/allocate", handlers.Allocate(webApp))
	api.Get("/export", handlers.Export(webApp))

	app.Use(handlers.NotFound())
}
