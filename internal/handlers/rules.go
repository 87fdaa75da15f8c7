package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/nelson/internal/analytics/nelson"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/services"
)

// ListRules handles GET /v1/rules
func (h *Handler) ListRules(c *fiber.Ctx) error {
	rules := make([]models.RuleResponse, 0, nelson.RuleCount)
	for _, r := range nelson.AllRules() {
		rules = append(rules, ruleResponse(r))
	}
	return c.JSON(models.RuleListResponse{Rules: rules})
}

// GetRule handles GET /v1/rules/:id
func (h *Handler) GetRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "Rule id must be an integer",
				Path:    c.Path(),
			},
		})
	}

	r, err := nelson.ParseRule(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NOT_FOUND",
				Message: err.Error(),
				Path:    c.Path(),
			},
		})
	}

	return c.JSON(ruleResponse(r))
}

func ruleResponse(r nelson.Rule) models.RuleResponse {
	return models.RuleResponse{
		ID:          int(r),
		Name:        r.Name(),
		Description: r.Description(),
	}
}
