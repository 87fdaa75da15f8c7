package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/handlers"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/middleware"
	"github.com/soltixdb/nelson/internal/services"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, evaluationService *services.EvaluationService, cfg config.Config) *handlers.Handler {
	h := handlers.New(logger, evaluationService)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled))
	v1.Get("/rules", h.ListRules)
	v1.Get("/rules/:id", h.GetRule)
	v1.Post("/evaluate", h.Evaluate)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, evaluationService *services.EvaluationService, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Nelson",
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, evaluationService, cfg)

	return app
}
