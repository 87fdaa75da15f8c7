package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/services"
)

// ServiceErrorStatus maps a service error code to its HTTP status
func ServiceErrorStatus(code string) int {
	switch code {
	case services.CodeInvalidRequest, services.CodeInvalidGrain, services.CodeInvalidAggregation:
		return fiber.StatusBadRequest
	case services.CodeInsufficientData:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler returns a custom error handler middleware
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		detail := models.ErrorDetail{
			Code:    "ERROR",
			Message: "Internal Server Error",
			Path:    c.Path(),
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			detail.Message = fiberErr.Message
			if status == fiber.StatusNotFound {
				detail.Code = "NOT_FOUND"
			}
		} else if svcErr, ok := services.AsServiceError(err); ok {
			status = ServiceErrorStatus(svcErr.Code)
			detail.Code = svcErr.Code
			detail.Message = svcErr.Message
			detail.Details = svcErr.Details
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err,
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Warn("Request error", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{Error: detail})
	}
}
