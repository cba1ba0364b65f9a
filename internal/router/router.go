package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/geometria-labs/geometria-api/internal/config"
	"github.com/geometria-labs/geometria-api/internal/handler"
	"github.com/geometria-labs/geometria-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WorksheetHandler  *handler.WorksheetHandler
	SectionHandler    *handler.SectionHandler
	AssessmentHandler *handler.AssessmentHandler
	JWTMiddleware     fiber.Handler
	AssessRateLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.WorksheetHandler != nil {
		worksheets := app.Group("/api/v1/worksheets", jwtMiddleware)
		deps.WorksheetHandler.Register(worksheets)
	}

	if deps.SectionHandler != nil {
		assignments := app.Group("/api/v1/assignments", jwtMiddleware)
		deps.SectionHandler.Register(assignments)
	}

	if deps.AssessmentHandler != nil {
		handlers := []fiber.Handler{jwtMiddleware}
		if deps.AssessRateLimiter != nil {
			handlers = append(handlers, deps.AssessRateLimiter)
		}
		assess := app.Group("/api/v1/assess", handlers...)
		deps.AssessmentHandler.Register(assess)
	}
}
