package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/vmq/backend/models"
	"github.com/ellavondegurechaff/vmq/backend/utils"
	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/pool/metrics"
)

// Pinger is the part of the database handle the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
	PoolStats() map[string]any
}

// WebApp represents the web application with all dependencies
type WebApp struct {
	Accounts accounts.Service
	DB       Pinger
	Version  string
	Commit   string
}

func HealthCheck(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := models.NewHealthCheck(webApp.Version, webApp.Commit)

		if webApp.DB != nil {
			if err := webApp.DB.Ping(c.UserContext()); err != nil {
				health.AddComponent("database", "unhealthy", err.Error(), nil)
			} else {
				health.AddComponent("database", "healthy", "", webApp.DB.PoolStats())
			}
		}

		if !health.Healthy() {
			return utils.SendError(c, fiber.StatusServiceUnavailable, models.CodeStoreError,
				"Health check failed", map[string]string{"database": health.Components["database"].Message})
		}
		return utils.SendSuccess(c, health, "Health check successful")
	}
}

// AddAccounts ingests a JSON array of tokens.
func AddAccounts(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokens, err := utils.ParseTokenList(c.Body())
		if err != nil {
			return utils.SendBadRequest(c, models.CodeInvalidRequest, err.Error(), nil)
		}

		result, err := webApp.Accounts.Add(c.UserContext(), tokens)
		if err != nil {
			return respondError(c, "add accounts", err)
		}

		metrics.RecordAdd(result.Inserted, result.Skipped)
		slog.Info("Accounts added",
			slog.String("type", "http"),
			slog.Int("batch", len(tokens)),
			slog.Int("inserted", result.Inserted),
			slog.Int("skipped", result.Skipped))

		return utils.SendCreated(c, result, "Accounts added")
	}
}

func Stats(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := webApp.Accounts.Stats(c.UserContext())
		if err != nil {
			return respondError(c, "stats", err)
		}

		metrics.RecordPool(stats.Total, stats.Used, stats.Unused)
		return utils.SendSuccess(c, stats, "Pool statistics")
	}
}

// Allocate claims accounts for the consumer named in the body. The legacy
// extractor field is accepted in place of consumer.
func Allocate(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.AllocateRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && (typeErr.Field == "consumer" || typeErr.Field == "extractor") {
				return utils.SendBadRequest(c, models.CodeInvalidConsumer,
					typeErr.Field+" must be a string", map[string]string{"field": typeErr.Field})
			}
			return utils.SendBadRequest(c, models.CodeInvalidRequest, "Body must be a JSON object", nil)
		}

		count, err := utils.ParseCount(req.Count)
		if err != nil {
			return respondError(c, "allocate", err)
		}

		alloc, err := webApp.Accounts.Allocate(c.UserContext(), count, req.ConsumerName())
		if err != nil {
			if errors.Is(err, accounts.ErrNoneAvailable) {
				metrics.RecordAllocateEmpty()
			}
			return respondError(c, "allocate", err)
		}

		metrics.RecordAllocation(alloc.Count)
		slog.Info("Accounts allocated",
			slog.String("type", "http"),
			slog.String("consumer", alloc.Consumer),
			slog.Int("requested", count),
			slog.Int("count", alloc.Count))

		return utils.SendSuccess(c, alloc, "Accounts allocated")
	}
}

func Export(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		export, err := webApp.Accounts.Export(c.UserContext())
		if err != nil {
			return respondError(c, "export", err)
		}
		return utils.SendSuccess(c, export, "Accounts exported")
	}
}

// NotFound is the fallback for unknown routes.
func NotFound() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendNotFound(c, models.CodeNotFound, "Route not found")
	}
}

// noUnusedMessage answers an allocation that found nothing to lock. Rows
// held by in-flight claims are skipped, so the pool may not be empty for
// good: callers should retry later.
const noUnusedMessage = "No unused accounts available, try again later"

// respondError maps a service error to its status and code. Store faults
// are logged in full and reported generically.
func respondError(c *fiber.Ctx, op string, err error) error {
	var ve *accounts.ValidationError
	switch {
	case errors.As(err, &ve):
		code := models.CodeInvalidRequest
		switch {
		case errors.Is(err, accounts.ErrInvalidCount):
			code = models.CodeInvalidCount
		case errors.Is(err, accounts.ErrInvalidConsumer):
			code = models.CodeInvalidConsumer
		case errors.Is(err, accounts.ErrNoValidTokens), errors.Is(err, accounts.ErrTokenTooLong):
			code = models.CodeNoValidAccounts
		}
		return utils.SendBadRequest(c, code, ve.Err.Error(), map[string]string{"field": ve.Field})

	case errors.Is(err, accounts.ErrNoneAvailable):
		return utils.SendNotFound(c, models.CodeNoUnusedAccounts, noUnusedMessage)

	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("Store operation timed out",
			slog.String("type", "db"),
			slog.String("operation", op),
			slog.String("request_id", utils.GetRequestID(c)),
			slog.Any("error", err))
		return utils.SendError(c, fiber.StatusGatewayTimeout, models.CodeTimeout, "Store operation timed out", nil)

	default:
		slog.Error("Store operation failed",
			slog.String("type", "db"),
			slog.String("operation", op),
			slog.String("request_id", utils.GetRequestID(c)),
			slog.Any("error", err))
		return utils.SendInternalServerError(c, models.CodeStoreError, "Store operation failed")
	}
}
