package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

const (
	slotCacheVersionKey = "slots:version"
	slotCacheTTL        = 30 * time.Second
)

// SlotService owns technician time slots.
type SlotService struct {
	slots       repository.SlotRepository
	technicians repository.TechnicianRepository
	cache       *persistence.Redis
	logger      *zap.Logger
}

// SlotDependencies bundles collaborators for the service.
type SlotDependencies struct {
	SlotRepo       repository.SlotRepository
	TechnicianRepo repository.TechnicianRepository
	Cache          *persistence.Redis
	Logger         *zap.Logger
}

// RecurringSlotsInput describes a batch of recurring slots: each matching
// weekday within the date range is tiled with fixed-duration slots across
// the daily window.
type RecurringSlotsInput struct {
	TechnicianID        string
	From                time.Time
	To                  time.Time
	Weekdays            []time.Weekday
	WindowStartHour     int
	WindowStartMinute   int
	WindowEndHour       int
	WindowEndMinute     int
	SlotDurationMinutes int
}

// RecurringSlotsResult reports what a recurring run produced.
type RecurringSlotsResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// SlotPage is the paginated all-slots view.
type SlotPage struct {
	Slots    []domain.Slot
	Total    int64
	Reserved int64
	Free     int64
}

// NewSlotService constructs the service.
func NewSlotService(deps SlotDependencies) *SlotService {
	return &SlotService{
		slots:       deps.SlotRepo,
		technicians: deps.TechnicianRepo,
		cache:       deps.Cache,
		logger:      deps.Logger,
	}
}

// CreateSlot stores a single slot, rejecting any window that overlaps an
// existing slot of the same technician over [start, end).
func (s *SlotService) CreateSlot(ctx context.Context, actor domain.Actor, technicianID string, start, end time.Time) (*domain.Slot, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if !end.After(start) {
		return nil, apperrors.NewValidationError("end must be after start", nil)
	}
	if _, err := s.technicians.GetByID(ctx, technicianID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}

	overlaps, err := s.slots.HasOverlap(ctx, technicianID, start, end)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if overlaps {
		return nil, apperrors.NewConflict("slot overlaps an existing slot", map[string]any{
			"technician_id": technicianID,
		})
	}

	slot := &domain.Slot{TechnicianID: technicianID, StartTime: start, EndTime: end}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateCache(ctx)
	return slot, nil
}

// CreateRecurringSlots walks each calendar day in the range and tiles
// fixed-duration slots across the daily window on matching weekdays. Slots
// identical to stored ones are skipped, so re-running the same input is
// idempotent; candidates overlapping a non-identical stored slot are
// skipped as well rather than failing the whole batch.
func (s *SlotService) CreateRecurringSlots(ctx context.Context, actor domain.Actor, input RecurringSlotsInput) (*RecurringSlotsResult, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if input.SlotDurationMinutes <= 0 {
		return nil, apperrors.NewValidationError("slot duration must be positive", nil)
	}
	if input.To.Before(input.From) {
		return nil, apperrors.NewValidationError("date range end before start", nil)
	}
	if len(input.Weekdays) == 0 {
		return nil, apperrors.NewValidationError("at least one weekday required", nil)
	}
	windowStart := input.WindowStartHour*60 + input.WindowStartMinute
	windowEnd := input.WindowEndHour*60 + input.WindowEndMinute
	if windowEnd <= windowStart {
		return nil, apperrors.NewValidationError("daily window end must be after start", nil)
	}
	if _, err := s.technicians.GetByID(ctx, input.TechnicianID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": input.TechnicianID})
		}
		return nil, apperrors.MapError(err)
	}

	wanted := make(map[time.Weekday]bool, len(input.Weekdays))
	for _, wd := range input.Weekdays {
		wanted[wd] = true
	}

	rangeStart := input.From.Truncate(24 * time.Hour)
	rangeEnd := input.To.Truncate(24 * time.Hour).Add(24 * time.Hour)
	existing, err := s.slots.ListByTechnicianRange(ctx, input.TechnicianID, rangeStart, rangeEnd)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	duration := time.Duration(input.SlotDurationMinutes) * time.Minute
	result := &RecurringSlotsResult{}

	for day := rangeStart; day.Before(rangeEnd); day = day.Add(24 * time.Hour) {
		if !wanted[day.Weekday()] {
			continue
		}
		dayStart := day.Add(time.Duration(windowStart) * time.Minute)
		dayEnd := day.Add(time.Duration(windowEnd) * time.Minute)

		for cur := dayStart; !cur.Add(duration).After(dayEnd); cur = cur.Add(duration) {
			slotEnd := cur.Add(duration)
			if overlapsAny(existing, cur, slotEnd) {
				result.Skipped++
				continue
			}
			created, err := s.slots.CreateIgnoreDuplicate(ctx, &domain.Slot{
				TechnicianID: input.TechnicianID,
				StartTime:    cur,
				EndTime:      slotEnd,
			})
			if err != nil {
				return nil, apperrors.MapError(err)
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
	}

	if result.Created > 0 {
		s.invalidateCache(ctx)
	}
	return result, nil
}

func overlapsAny(existing []domain.Slot, start, end time.Time) bool {
	for _, slot := range existing {
		if slot.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// DeleteSlot removes a slot; reserved slots cannot be deleted.
func (s *SlotService) DeleteSlot(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsStaff() {
		return apperrors.NewForbidden("staff role required")
	}
	if err := s.slots.DeleteUnreserved(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotReserved):
			return apperrors.NewConflict("slot is reserved", map[string]any{"slot_id": id})
		case errors.Is(err, pgx.ErrNoRows):
			return apperrors.NewNotFound("slot", map[string]any{"slot_id": id})
		default:
			return apperrors.MapError(err)
		}
	}
	s.invalidateCache(ctx)
	return nil
}

// ReserveSlot atomically reserves a free slot for an intervention. Exactly
// one of N concurrent callers succeeds; the rest observe Conflict.
func (s *SlotService) ReserveSlot(ctx context.Context, id, interventionID string) (*domain.Slot, error) {
	if err := s.slots.Reserve(ctx, id, interventionID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotAlreadyReserved):
			return nil, apperrors.NewConflict("slot already reserved", map[string]any{"slot_id": id})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("slot", map[string]any{"slot_id": id})
		default:
			return nil, apperrors.MapError(err)
		}
	}
	s.invalidateCache(ctx)
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return slot, nil
}

// ReleaseSlot clears a reservation unconditionally.
func (s *SlotService) ReleaseSlot(ctx context.Context, id string) error {
	if err := s.slots.Release(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("slot", map[string]any{"slot_id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidateCache(ctx)
	return nil
}

// GetSlot loads one slot.
func (s *SlotService) GetSlot(ctx context.Context, id string) (*domain.Slot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("slot", map[string]any{"slot_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return slot, nil
}

// ListFreeSlots returns unreserved slots in the window, optionally filtered
// by technician. Results are served from a short-lived cache keyed by a
// version counter bumped on every slot write.
func (s *SlotService) ListFreeSlots(ctx context.Context, from, to time.Time, technicianID *string, limit, offset int) ([]domain.Slot, error) {
	key := s.freeSlotsCacheKey(ctx, from, to, technicianID, limit, offset)
	if key != "" {
		var cached []domain.Slot
		if s.cache.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}
	slots, err := s.slots.ListFree(ctx, from, to, technicianID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if key != "" {
		s.cache.SetJSON(ctx, key, slots, slotCacheTTL)
	}
	return slots, nil
}

// ListSlots returns the paginated all-slots view with reserved/free counts.
func (s *SlotService) ListSlots(ctx context.Context, limit, offset int) (*SlotPage, error) {
	slots, err := s.slots.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.slots.Counts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &SlotPage{
		Slots:    slots,
		Total:    counts.Total,
		Reserved: counts.Reserved,
		Free:     counts.Free,
	}, nil
}

func (s *SlotService) freeSlotsCacheKey(ctx context.Context, from, to time.Time, technicianID *string, limit, offset int) string {
	if s.cache == nil {
		return ""
	}
	version := s.cache.Version(ctx, slotCacheVersionKey)
	tech := "any"
	if technicianID != nil {
		tech = *technicianID
	}
	return fmt.Sprintf("slots:free:v%d:%s:%d:%d:%d:%d", version, tech, from.Unix(), to.Unix(), limit, offset)
}

func (s *SlotService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.BumpVersion(ctx, slotCacheVersionKey)
}
