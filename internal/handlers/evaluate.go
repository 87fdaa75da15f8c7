package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/nelson/internal/middleware"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/services"
	"github.com/soltixdb/nelson/internal/utils"
)

// Evaluate handles POST /v1/evaluate
func (h *Handler) Evaluate(c *fiber.Ctx) error {
	var body models.EvaluateRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Path:    c.Path(),
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	req, err := services.NewEvaluationRequest(&body)
	if err != nil {
		return h.serviceError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), utils.DefaultRequestTimeout)
	defer cancel()

	resp, err := h.evaluationService.Execute(ctx, req)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(resp)
}

// serviceError renders a *services.ServiceError; anything else goes to the
// app error handler
func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	svcErr, ok := services.AsServiceError(err)
	if !ok {
		return err
	}

	status := middleware.ServiceErrorStatus(svcErr.Code)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("Evaluation failed", "code", svcErr.Code, "error", svcErr.Message, "path", c.Path())
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}
