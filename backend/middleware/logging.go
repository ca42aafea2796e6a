package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ellavondegurechaff/vmq/backend/utils"
	"github.com/ellavondegurechaff/vmq/pool/logger"
	"github.com/ellavondegurechaff/vmq/pool/metrics"
)

const requestIDHeader = "X-Request-ID"

// LoggingMiddleware tags each request with an id, logs it once it has been
// handled and records it in the request metrics.
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("request_id", requestID)
		c.Set(requestIDHeader, requestID)

		err := c.Next()
		if err != nil {
			// let the error handler write the status before it is logged
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		// unmatched paths share one label to keep cardinality bounded
		route := c.Route().Path
		if statusCode == fiber.StatusNotFound && route == "/" && c.Path() != "/" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Method(), route, statusCode, duration)

		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("ip", utils.GetIPAddress(c)),
			slog.Int("size", len(c.Response().Body())),
		}
		if ua := utils.GetUserAgent(c); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		logger.LogRequest(c.Method(), c.Path(), statusCode, duration, attrs...)

		return nil
	}
}
