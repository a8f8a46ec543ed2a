package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/intervexa/interview-api/internal/config"
	"github.com/intervexa/interview-api/internal/handler"
	"github.com/intervexa/interview-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	WebhookHandler    *handler.WebhookHandler
	ResultHandler     *handler.ResultHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.EvaluationHandler != nil {
		answers := api.Group("/answers", middleware.RateLimit("answers", 30, time.Minute))
		deps.EvaluationHandler.Register(answers)
	}

	if deps.WebhookHandler != nil {
		webhooks := api.Group("/webhooks")
		deps.WebhookHandler.Register(webhooks)
	}

	if deps.ResultHandler != nil {
		sessions := api.Group("/sessions")
		deps.ResultHandler.Register(sessions)
	}
}
