package handlers

import (
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger            *logging.Logger
	evaluationService *services.EvaluationService
}

// New creates a new handler instance
func New(logger *logging.Logger, evaluationService *services.EvaluationService) *Handler {
	return &Handler{
		logger:            logger,
		evaluationService: evaluationService,
	}
}
