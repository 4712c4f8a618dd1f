package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// EvaluationsHandler manages intervention rating endpoints.
type EvaluationsHandler struct {
	service *service.EvaluationService
}

// NewEvaluationsHandler constructs handler.
func NewEvaluationsHandler(evaluationService *service.EvaluationService) *EvaluationsHandler {
	return &EvaluationsHandler{service: evaluationService}
}

// Create POST /interventions/:id/evaluation.
func (h *EvaluationsHandler) Create(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	evaluation, err := h.service.Create(c.Context(), actor, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": evaluationResponse(evaluation)})
}

// Get GET /interventions/:id/evaluation.
func (h *EvaluationsHandler) Get(c *fiber.Ctx) error {
	evaluation, err := h.service.GetByIntervention(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": evaluationResponse(evaluation)})
}

func evaluationResponse(evaluation *domain.Evaluation) dto.EvaluationResponse {
	return dto.EvaluationResponse{
		ID:             evaluation.ID,
		InterventionID: evaluation.InterventionID,
		ClientID:       evaluation.ClientID,
		Rating:         evaluation.Rating,
		Comment:        evaluation.Comment,
		CreatedAt:      evaluation.CreatedAt,
	}
}
