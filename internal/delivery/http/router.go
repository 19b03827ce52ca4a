package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/globo/viewer/internal/metrics"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Form
		api.Get("/form", handler.GetForm)
		api.Patch("/form", handler.PatchForm)
		api.Post("/input", handler.UploadInput)

		// Result pipeline
		api.Post("/simplify", handler.Simplify)
		api.Post("/count", handler.Count)

		// Map view
		api.Get("/map", handler.GetMap)
		api.Post("/map/hover", handler.Hover)
		api.Post("/map/click", handler.Click)
		api.Get("/info", handler.GetInfo)
	}

	// Embedded counting backend
	if handler.counts != nil {
		app.Post("/tos2/geojson/multipolygon", handler.SimplifyMultipolygon)
		app.Post("/v1/counts/multipolygon", handler.CountMultipolygon)
	}
}
