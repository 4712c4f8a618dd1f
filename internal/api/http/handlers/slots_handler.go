package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// SlotsHandler manages slot endpoints.
type SlotsHandler struct {
	service *service.SlotService
}

// NewSlotsHandler constructs handler.
func NewSlotsHandler(slotService *service.SlotService) *SlotsHandler {
	return &SlotsHandler{service: slotService}
}

// Create POST /slots.
func (h *SlotsHandler) Create(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	slot, err := h.service.CreateSlot(c.Context(), actor, req.TechnicianID, req.StartTime, req.EndTime)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": slotResponse(slot)})
}

// CreateRecurring POST /slots/recurring.
func (h *SlotsHandler) CreateRecurring(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RecurringSlotsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, day := range req.Weekdays {
		if day < 0 || day > 6 {
			return apperrors.NewValidationError("weekdays must be 0 (Sunday) through 6 (Saturday)", nil)
		}
		weekdays = append(weekdays, time.Weekday(day))
	}
	result, err := h.service.CreateRecurringSlots(c.Context(), actor, service.RecurringSlotsInput{
		TechnicianID:        req.TechnicianID,
		From:                req.From,
		To:                  req.To,
		Weekdays:            weekdays,
		WindowStartHour:     req.WindowStartHour,
		WindowStartMinute:   req.WindowStartMinute,
		WindowEndHour:       req.WindowEndHour,
		WindowEndMinute:     req.WindowEndMinute,
		SlotDurationMinutes: req.SlotDurationMinutes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// Delete DELETE /slots/:id.
func (h *SlotsHandler) Delete(c *fiber.Ctx) error {
	_, actor, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteSlot(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Get GET /slots/:id.
func (h *SlotsHandler) Get(c *fiber.Ctx) error {
	slot, err := h.service.GetSlot(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slotResponse(slot)})
}

// ListFree GET /slots/free.
func (h *SlotsHandler) ListFree(c *fiber.Ctx) error {
	from := parseTime(c.Query("from"))
	to := parseTime(c.Query("to"))
	if from == nil || to == nil {
		return apperrors.NewValidationError("from and to are required RFC3339 timestamps", nil)
	}
	var technicianID *string
	if id := c.Query("technician_id"); id != "" {
		technicianID = &id
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)

	slots, err := h.service.ListFreeSlots(c.Context(), *from, *to, technicianID, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.SlotResponse, 0, len(slots))
	for i := range slots {
		items = append(items, slotResponse(&slots[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// List GET /slots.
func (h *SlotsHandler) List(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)

	result, err := h.service.ListSlots(c.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.SlotResponse, 0, len(result.Slots))
	for i := range result.Slots {
		items = append(items, slotResponse(&result.Slots[i]))
	}
	return c.JSON(fiber.Map{"data": dto.SlotPageResponse{
		Slots:    items,
		Total:    result.Total,
		Reserved: result.Reserved,
		Free:     result.Free,
	}})
}

func slotResponse(slot *domain.Slot) dto.SlotResponse {
	return dto.SlotResponse{
		ID:             slot.ID,
		TechnicianID:   slot.TechnicianID,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		IsReserved:     slot.IsReserved,
		InterventionID: slot.InterventionID,
		CreatedAt:      slot.CreatedAt,
	}
}
