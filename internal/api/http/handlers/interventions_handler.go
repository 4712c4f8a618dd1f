package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// InterventionsHandler manages intervention endpoints.
type InterventionsHandler struct {
	service *service.InterventionService
}

// NewInterventionsHandler constructs handler.
func NewInterventionsHandler(interventionService *service.InterventionService) *InterventionsHandler {
	return &InterventionsHandler{service: interventionService}
}

// Create POST /interventions.
func (h *InterventionsHandler) Create(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateInterventionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	iv, err := h.service.Create(c.Context(), actor, service.InterventionCreateInput{
		ComplaintID:   req.ComplaintID,
		TechnicianID:  req.TechnicianID,
		ScheduledDate: req.ScheduledDate,
		LaborCents:    req.LaborCents,
		Comment:       req.Comment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": interventionDetail(iv)})
}

// List GET /interventions. Clients only ever see their own.
func (h *InterventionsHandler) List(c *fiber.Ctx) error {
	principal, _, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := parseInterventionFilter(c)
	switch {
	case principal.User != nil:
		clientID := principal.User.ID
		filter.ClientID = &clientID
	case principal.Technician != nil:
		technicianID := principal.Technician.ID
		filter.TechnicianID = &technicianID
	}

	interventions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.InterventionSummary, 0, len(interventions))
	for i := range interventions {
		items = append(items, interventionSummary(&interventions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /interventions/:id.
func (h *InterventionsHandler) Get(c *fiber.Ctx) error {
	principal, _, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	iv, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if err := authorizeInterventionRead(principal, iv); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionDetail(iv)})
}

// Update PATCH /interventions/:id.
func (h *InterventionsHandler) Update(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateInterventionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	iv, err := h.service.UpdateFields(c.Context(), actor, c.Params("id"), service.InterventionUpdateInput{
		ScheduledDate: req.ScheduledDate,
		LaborCents:    req.LaborCents,
		Comment:       req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionDetail(iv)})
}

// Transition POST /interventions/:id/transition. Staff can drive any
// action; technicians are routed through the restricted path.
func (h *InterventionsHandler) Transition(c *fiber.Ctx) error {
	principal, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Action == "" {
		return apperrors.NewValidationError("action required", nil)
	}

	var iv *domain.Intervention
	if principal.Technician != nil {
		iv, err = h.service.TransitionStatusAsTechnician(c.Context(), actor, c.Params("id"), req.Action)
	} else {
		iv, err = h.service.TransitionStatus(c.Context(), actor, c.Params("id"), req.Action)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionDetail(iv)})
}

// AddPart POST /interventions/:id/parts.
func (h *InterventionsHandler) AddPart(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AddPartUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	usage, err := h.service.AddPartUsage(c.Context(), actor, c.Params("id"), req.PartID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": partUsageResponse(usage)})
}

// Reassign POST /interventions/:id/reassign.
func (h *InterventionsHandler) Reassign(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReassignTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TechnicianID) == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	iv, err := h.service.ReassignTechnician(c.Context(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionDetail(iv)})
}

// Delete DELETE /interventions/:id. Cancels rather than removes.
func (h *InterventionsHandler) Delete(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	iv, err := h.service.Delete(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionDetail(iv)})
}

// Invoice GET /interventions/:id/invoice.
func (h *InterventionsHandler) Invoice(c *fiber.Ctx) error {
	principal, _, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	iv, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if err := authorizeInterventionRead(principal, iv); err != nil {
		return err
	}
	summary, invoiceable, err := h.service.InvoiceSummary(c.Context(), iv.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"summary":     summary,
		"invoiceable": invoiceable,
	}})
}

// Stats GET /interventions/stats.
func (h *InterventionsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, principal.Actor(), nil
}

func authorizeInterventionRead(principal *auth.Principal, iv *domain.Intervention) error {
	switch {
	case principal.Staff != nil:
		return nil
	case principal.User != nil && iv.ClientID == principal.User.ID:
		return nil
	case principal.Technician != nil && iv.TechnicianID != nil && *iv.TechnicianID == principal.Technician.ID:
		return nil
	}
	return apperrors.NewNotFound("intervention", map[string]any{"intervention_id": iv.ID})
}

func parseInterventionFilter(c *fiber.Ctx) repository.InterventionFilter {
	filter := repository.InterventionFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.InterventionStatus(strings.TrimSpace(part)))
		}
	}
	if complaintID := c.Query("complaint_id"); complaintID != "" {
		filter.ComplaintID = &complaintID
	}
	if technicianID := c.Query("technician_id"); technicianID != "" {
		filter.TechnicianID = &technicianID
	}
	if from := parseTime(c.Query("scheduled_from")); from != nil {
		filter.ScheduledFrom = from
	}
	if to := parseTime(c.Query("scheduled_to")); to != nil {
		filter.ScheduledTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func interventionSummary(iv *domain.Intervention) dto.InterventionSummary {
	return dto.InterventionSummary{
		ID:            iv.ID,
		ReferenceKey:  iv.ReferenceKey,
		ComplaintID:   iv.ComplaintID,
		ClientID:      iv.ClientID,
		TechnicianID:  iv.TechnicianID,
		ScheduledDate: iv.ScheduledDate,
		Status:        iv.Status,
		IsFree:        iv.IsFree,
		CreatedAt:     iv.CreatedAt,
		UpdatedAt:     iv.UpdatedAt,
	}
}

func interventionDetail(iv *domain.Intervention) dto.InterventionDetailResponse {
	parts := make([]dto.PartUsageResponse, 0, len(iv.PartsUsed))
	for i := range iv.PartsUsed {
		parts = append(parts, partUsageResponse(&iv.PartsUsed[i]))
	}
	return dto.InterventionDetailResponse{
		ID:            iv.ID,
		ReferenceKey:  iv.ReferenceKey,
		ComplaintID:   iv.ComplaintID,
		ClientID:      iv.ClientID,
		TechnicianID:  iv.TechnicianID,
		ScheduledDate: iv.ScheduledDate,
		Status:        iv.Status,
		IsFree:        iv.IsFree,
		LaborCents:    iv.LaborCents,
		Comment:       iv.Comment,
		PartsUsed:     parts,
		CreatedAt:     iv.CreatedAt,
		UpdatedAt:     iv.UpdatedAt,
		CompletedAt:   iv.CompletedAt,
	}
}

func partUsageResponse(usage *domain.PartUsage) dto.PartUsageResponse {
	return dto.PartUsageResponse{
		ID:             usage.ID,
		PartID:         usage.PartID,
		PartName:       usage.PartName,
		Quantity:       usage.Quantity,
		UnitPriceCents: usage.UnitPriceCents,
		SubtotalCents:  usage.SubtotalCents(),
		CreatedAt:      usage.CreatedAt,
	}
}
