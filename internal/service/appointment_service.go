package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// AppointmentService runs the customer request-for-appointment workflow on
// top of the slot scheduler.
type AppointmentService struct {
	requests   repository.AppointmentRequestRepository
	slots      *SlotService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AppointmentDependencies bundles collaborators for the service.
type AppointmentDependencies struct {
	RequestRepo repository.AppointmentRequestRepository
	SlotService *SlotService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// AppointmentCreateInput describes a client submission.
type AppointmentCreateInput struct {
	SlotID      *string
	DesiredDate time.Time
	Preference  string
	Motive      string
}

// TreatInput describes a staff decision on a pending request.
type TreatInput struct {
	Accept bool
	// OverrideSlotID lets staff book a different slot than the one the
	// client asked for.
	OverrideSlotID *string
	// InterventionID is the intervention the reserved slot gets bound to;
	// required on accept so that every reserved slot carries its holder.
	InterventionID string
	Comment        string
}

// NewAppointmentService constructs the service.
func NewAppointmentService(deps AppointmentDependencies) *AppointmentService {
	return &AppointmentService{
		requests:   deps.RequestRepo,
		slots:      deps.SlotService,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateRequest submits a client request against a free slot. The slot is
// deliberately not reserved yet: reservation happens at approval time, so
// an unreviewed request cannot squat a slot indefinitely. A client with an
// active request gets Conflict.
func (s *AppointmentService) CreateRequest(ctx context.Context, actor domain.Actor, input AppointmentCreateInput) (*domain.AppointmentRequest, error) {
	if actor.Role != domain.ActorRoleClient {
		return nil, apperrors.NewForbidden("client role required")
	}
	if input.DesiredDate.IsZero() {
		return nil, apperrors.NewValidationError("desired_date required", nil)
	}

	if input.SlotID != nil {
		slot, err := s.slots.GetSlot(ctx, *input.SlotID)
		if err != nil {
			return nil, err
		}
		if slot.IsReserved {
			return nil, apperrors.NewConflict("slot already reserved", map[string]any{"slot_id": slot.ID})
		}
	}

	req := &domain.AppointmentRequest{
		ClientID:    actor.ID,
		SlotID:      input.SlotID,
		DesiredDate: input.DesiredDate,
		Preference:  strings.TrimSpace(input.Preference),
		Motive:      strings.TrimSpace(input.Motive),
		Status:      domain.AppointmentStatusPending,
	}
	if err := s.requests.CreateIfNoActive(ctx, req, time.Now()); err != nil {
		if errors.Is(err, repository.ErrActiveRequestExists) {
			return nil, apperrors.NewConflict("client already has an active appointment request", map[string]any{
				"client_id": actor.ID,
			})
		}
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

// Treat decides a pending request. On accept the resolved slot is
// re-validated and reserved; time has passed since submission, so the slot
// may have been taken by another accepted request in the interim. That
// race surfaces as Conflict, never as a silent double booking. On reject
// no slot is touched.
func (s *AppointmentService) Treat(ctx context.Context, actor domain.Actor, requestID string, input TreatInput) (*domain.AppointmentRequest, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.CanBeTreated() {
		return nil, apperrors.NewInvalidTransition("request already processed", map[string]any{
			"status": req.Status,
		})
	}

	oldStatus := req.Status
	now := time.Now()

	var reservedSlotID *string
	if input.Accept {
		slotID := req.SlotID
		if input.OverrideSlotID != nil {
			slotID = input.OverrideSlotID
		}
		if slotID == nil {
			return nil, apperrors.NewValidationError("no slot to reserve", nil)
		}
		if input.InterventionID == "" {
			return nil, apperrors.NewValidationError("intervention_id required on accept", nil)
		}
		if _, err := s.slots.ReserveSlot(ctx, *slotID, input.InterventionID); err != nil {
			return nil, err
		}
		reservedSlotID = slotID
		req.SlotID = slotID
		req.Status = domain.AppointmentStatusConfirmed
	} else {
		req.Status = domain.AppointmentStatusRejected
	}
	req.Comment = strings.TrimSpace(input.Comment)
	req.ProcessedAt = &now

	if err := s.requests.Update(ctx, req); err != nil {
		// The request stays Pending, so the reservation must not outlive it.
		if reservedSlotID != nil {
			if relErr := s.slots.ReleaseSlot(ctx, *reservedSlotID); relErr != nil {
				s.logger.Warn("slot release after failed update",
					zap.String("slot_id", *reservedSlotID), zap.Error(relErr))
			}
		}
		return nil, apperrors.MapError(err)
	}

	s.publishStatusChange(ctx, actor, req, oldStatus)
	return req, nil
}

// Cancel terminates a request, releasing any slot it had reserved. Clients
// may cancel their own requests; staff may cancel any.
func (s *AppointmentService) Cancel(ctx context.Context, actor domain.Actor, requestID string) (*domain.AppointmentRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.ActorRoleStaff:
	case domain.ActorRoleClient:
		if req.ClientID != actor.ID {
			return nil, apperrors.NewNotFound("appointment request", map[string]any{"request_id": requestID})
		}
	default:
		return nil, apperrors.NewForbidden("client or staff required")
	}
	if !req.CanBeCancelled() {
		return nil, apperrors.NewInvalidTransition("request cannot be cancelled", map[string]any{
			"status": req.Status,
		})
	}

	oldStatus := req.Status
	now := time.Now()
	req.Status = domain.AppointmentStatusCancelled
	req.ProcessedAt = &now
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	// Release only after the cancellation is durable; a failed release
	// leaves the slot reserved, never a cancelled request holding nothing.
	if oldStatus == domain.AppointmentStatusConfirmed && req.SlotID != nil {
		if err := s.slots.ReleaseSlot(ctx, *req.SlotID); err != nil {
			s.logger.Warn("slot release after cancellation",
				zap.String("slot_id", *req.SlotID), zap.Error(err))
		}
	}

	s.publishStatusChange(ctx, actor, req, oldStatus)
	return req, nil
}

// Get loads one request, restricted to its owner for clients.
func (s *AppointmentService) Get(ctx context.Context, actor domain.Actor, requestID string) (*domain.AppointmentRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.ActorRoleClient && req.ClientID != actor.ID {
		return nil, apperrors.NewNotFound("appointment request", map[string]any{"request_id": requestID})
	}
	return req, nil
}

// List returns requests most recent first. Clients only ever see their own.
func (s *AppointmentService) List(ctx context.Context, actor domain.Actor, filter repository.AppointmentRequestFilter) ([]domain.AppointmentRequest, error) {
	if actor.Role == domain.ActorRoleClient {
		clientID := actor.ID
		filter.ClientID = &clientID
	}
	items, err := s.requests.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

func (s *AppointmentService) getRequest(ctx context.Context, id string) (*domain.AppointmentRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("appointment request", map[string]any{"request_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

func (s *AppointmentService) publishStatusChange(ctx context.Context, actor domain.Actor, req *domain.AppointmentRequest, oldStatus domain.AppointmentRequestStatus) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAppointmentStatusChanged,
		Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
		Timestamp: time.Now(),
		Payload: events.AppointmentStatusChangedPayload{
			RequestID: req.ID,
			ClientID:  req.ClientID,
			SlotID:    req.SlotID,
			OldStatus: oldStatus,
			NewStatus: req.Status,
		},
	})
}
