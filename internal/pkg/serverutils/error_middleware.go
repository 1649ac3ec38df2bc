package serverutils

import (
	"errors"

	"ollama-chat-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors escaping the handlers into the
// JSON error body. Once a streaming response has started the body is
// already on the wire, so nothing is written in that case.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			log.Warn("http", "request failed", map[string]interface{}{
				"path":   ctx.Path(),
				"status": appErr.Code,
				"error":  appErr.Error(),
			})
			body := ErrorResponse(appErr.Message)
			if appErr.Err != nil {
				body.Details = appErr.Err.Error()
			}
			return ctx.Status(appErr.Code).JSON(body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		log.Error("http", "unhandled error", map[string]interface{}{
			"path":  ctx.Path(),
			"error": err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			ErrorResponse("Internal server error", err.Error()))
	}
}
