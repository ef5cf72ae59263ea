package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/mathla-api/internal/config"
	"github.com/noah-isme/mathla-api/internal/handler"
	"github.com/noah-isme/mathla-api/internal/middleware"
	"github.com/noah-isme/mathla-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler     *handler.SubmissionHandler
	SubmissionFeedHandler *handler.SubmissionFeedHandler
	GradebookHandler      *handler.GradebookHandler
	RosterHandler         *handler.RosterHandler
	HealthProbes          map[string]handler.HealthProbe
	JWTMiddleware         fiber.Handler
	RateLimiter           fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := []fiber.Handler{middleware.QueryTokenFallback("access_token"), jwtMiddleware, rateLimiter}

	// Submissions (lifecycle, grading, live feed)
	if deps.SubmissionHandler != nil || deps.SubmissionFeedHandler != nil {
		submissions := api.Group("/submissions", protected...)
		if deps.SubmissionFeedHandler != nil {
			deps.SubmissionFeedHandler.Register(submissions)
		}
		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.Register(submissions)
		}
	}

	// Per-student deadlines on the assignment roster
	if deps.RosterHandler != nil {
		assignments := api.Group("/assignments", protected...)
		deps.RosterHandler.Register(assignments)
	}

	// Student gradebook
	if deps.GradebookHandler != nil {
		students := api.Group("/students", protected...)
		deps.GradebookHandler.Register(students)
	}
}
