package api

import (
	"github.com/RixGem/progresspath/internal/config"
	"github.com/RixGem/progresspath/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, handlers *Handlers, cfg *config.Config) {
	// API group with versioning
	api := app.Group("/api/v1")

	// Health check endpoint
	api.Get("/health", handlers.HealthCheck)

	// Scheduler-facing endpoints (shared-secret bearer auth)
	admin := api.Group("/admin", middleware.RequireRefreshSecret(cfg.RefreshSecret))
	{
		admin.Post("/refresh", handlers.TriggerRefresh)
		admin.Get("/refresh/status", handlers.RefreshStatus)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
