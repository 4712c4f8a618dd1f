package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// TechniciansHandler manages the technician directory endpoints.
type TechniciansHandler struct {
	service *service.TechnicianService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(technicianService *service.TechnicianService) *TechniciansHandler {
	return &TechniciansHandler{service: technicianService}
}

// Create POST /technicians.
func (h *TechniciansHandler) Create(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	technician, err := h.service.Create(c.Context(), actor, service.CreateTechnicianInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Specialty: req.Specialty,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": technicianResponse(technician)})
}

// Get GET /technicians/:id.
func (h *TechniciansHandler) Get(c *fiber.Ctx) error {
	technician, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianResponse(technician)})
}

// List GET /technicians.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	filter := repository.TechnicianFilter{
		AvailableOnly: c.QueryBool("available"),
	}
	if specialty := c.Query("specialty"); specialty != "" {
		filter.Specialty = &specialty
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	technicians, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, technicianResponse(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SetAvailability PUT /technicians/:id/availability.
func (h *TechniciansHandler) SetAvailability(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SetAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.SetAvailability(c.Context(), actor, c.Params("id"), req.Available); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func technicianResponse(technician *domain.Technician) dto.TechnicianResponse {
	return dto.TechnicianResponse{
		ID:          technician.ID,
		Name:        technician.Name,
		Email:       technician.Email,
		Specialty:   technician.Specialty,
		IsAvailable: technician.IsAvailable,
		CreatedAt:   technician.CreatedAt,
	}
}
