// Package api serves the forecasting model over HTTP with fiber.
package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"co2-forecast/internal/common"
	"co2-forecast/internal/schema"
)

// Config configures the fiber application.
type Config struct {
	AllowOrigins   []string
	RequestTimeout time.Duration
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// NewApp builds the fiber application with middleware and all routes registered.
func NewApp(h *Handler, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "CO2 Forecast API",
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
		}))
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = common.DevOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))
	app.Use(requestMetrics(h.metrics))

	SetupRoutes(app, h)
	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled request error")
	}

	return c.Status(code).JSON(schema.ErrorResponse{
		Error:   true,
		Message: message,
	})
}

// requestMetrics records count and latency of every request by matched route.
func requestMetrics(m MetricsInterface) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}
		m.RequestObserve(c.Method(), c.Route().Path, status, time.Since(start).Seconds())
		return err
	}
}
