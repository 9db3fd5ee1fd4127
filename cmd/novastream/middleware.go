package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// createLoggingMiddleware creates a middleware that logs all requests after they were handled.
func createLoggingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Milliseconds()
		logger.Info("Handled request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Int64("durationMs", duration))
		return err
	}
}

// createSessionMiddleware creates a middleware that requires a client-chosen
// session ID on playback endpoints, taken from the "X-Session-Id" header with
// a "session" query parameter fallback.
func createSessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Get("X-Session-Id")
		if sessionID == "" {
			sessionID = c.Query("session")
		}
		if sessionID == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Missing session ID: set the \"X-Session-Id\" header or the \"session\" query parameter")
		}
		c.Locals("sessionID", sessionID)
		return c.Next()
	}
}
