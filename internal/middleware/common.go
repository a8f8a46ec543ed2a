package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config carries the dependencies the request pipeline needs.
type Config struct {
	Logger *zerolog.Logger
}

// Register wires the shared request pipeline. Recovery sits first so a panic
// anywhere further down the chain still surfaces as a 500, and the
// correlation id is bound before anything logs.
func Register(app *fiber.App, cfg Config) {
	obsLogger := zerolog.Nop()
	if cfg.Logger != nil {
		obsLogger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(obsLogger))
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Correlation-ID, X-Scoring-Secret",
		AllowMethods: "GET,POST,OPTIONS",
	}))
}
