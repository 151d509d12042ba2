package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit emits structured logs for each request/response lifecycle event.
// Client errors are logged at warn, server errors at error.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		duration := time.Since(start)
		requestID, _ := c.Locals(requestIDHeader).(string)

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if userID, _ := c.Locals(UserIDKey).(string); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}
		if err == nil {
			logger.Info("request completed", attrs...)
			return nil
		}

		attrs = append(attrs, slog.Any("error", err))
		if status < fiber.StatusInternalServerError {
			logger.Warn("request rejected", attrs...)
		} else {
			logger.Error("request failed", attrs...)
		}
		return err
	}
}
