package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// AppointmentsHandler manages appointment request endpoints.
type AppointmentsHandler struct {
	service *service.AppointmentService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(appointmentService *service.AppointmentService) *AppointmentsHandler {
	return &AppointmentsHandler{service: appointmentService}
}

// Create POST /appointments.
func (h *AppointmentsHandler) Create(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.service.CreateRequest(c.Context(), actor, service.AppointmentCreateInput{
		SlotID:      req.SlotID,
		DesiredDate: req.DesiredDate,
		Preference:  req.Preference,
		Motive:      req.Motive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": appointmentResponse(request)})
}

// Treat POST /appointments/:id/treat.
func (h *AppointmentsHandler) Treat(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TreatAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.service.Treat(c.Context(), actor, c.Params("id"), service.TreatInput{
		Accept:         req.Accept,
		OverrideSlotID: req.OverrideSlotID,
		InterventionID: req.InterventionID,
		Comment:        req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(request)})
}

// Cancel POST /appointments/:id/cancel.
func (h *AppointmentsHandler) Cancel(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	request, err := h.service.Cancel(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(request)})
}

// Get GET /appointments/:id.
func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	request, err := h.service.Get(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(request)})
}

// List GET /appointments.
func (h *AppointmentsHandler) List(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := repository.AppointmentRequestFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.AppointmentRequestStatus(strings.TrimSpace(part)))
		}
	}
	if clientID := c.Query("client_id"); clientID != "" {
		filter.ClientID = &clientID
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	requests, err := h.service.List(c.Context(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.AppointmentResponse, 0, len(requests))
	for i := range requests {
		items = append(items, appointmentResponse(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func appointmentResponse(req *domain.AppointmentRequest) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:          req.ID,
		ClientID:    req.ClientID,
		SlotID:      req.SlotID,
		DesiredDate: req.DesiredDate,
		Preference:  req.Preference,
		Motive:      req.Motive,
		Status:      req.Status,
		Comment:     req.Comment,
		CreatedAt:   req.CreatedAt,
		ProcessedAt: req.ProcessedAt,
	}
}
