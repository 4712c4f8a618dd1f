package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/billing"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/external"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// complaintStatusResolved is what the complaint service is told when the
// linked intervention completes.
const complaintStatusResolved = "Resolved"

// InterventionService coordinates the intervention lifecycle.
type InterventionService struct {
	interventions repository.InterventionRepository
	parts         repository.PartUsageRepository
	technicians   repository.TechnicianRepository
	complaints    external.ComplaintClient
	warranty      external.WarrantyClient
	catalog       external.CatalogClient
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// InterventionDependencies bundles collaborators for the service.
type InterventionDependencies struct {
	InterventionRepo repository.InterventionRepository
	PartUsageRepo    repository.PartUsageRepository
	TechnicianRepo   repository.TechnicianRepository
	ComplaintClient  external.ComplaintClient
	WarrantyClient   external.WarrantyClient
	CatalogClient    external.CatalogClient
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// InterventionCreateInput describes intervention creation payload.
type InterventionCreateInput struct {
	ComplaintID   string
	TechnicianID  *string
	ScheduledDate time.Time
	LaborCents    *int64
	Comment       string
}

// InterventionUpdateInput carries optional field updates; nil leaves a
// field untouched. Status and the warranty flag are not updatable here.
type InterventionUpdateInput struct {
	ScheduledDate *time.Time
	LaborCents    *int64
	Comment       *string
}

// NewInterventionService constructs the service.
func NewInterventionService(deps InterventionDependencies) *InterventionService {
	return &InterventionService{
		interventions: deps.InterventionRepo,
		parts:         deps.PartUsageRepo,
		technicians:   deps.TechnicianRepo,
		complaints:    deps.ComplaintClient,
		warranty:      deps.WarrantyClient,
		catalog:       deps.CatalogClient,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// Create opens an intervention against an existing complaint. The warranty
// status is resolved once, here, and frozen onto the intervention. Any
// failure of the complaint or warranty lookup aborts the operation with
// nothing persisted.
func (s *InterventionService) Create(ctx context.Context, actor domain.Actor, input InterventionCreateInput) (*domain.Intervention, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if input.ComplaintID == "" {
		return nil, apperrors.NewValidationError("complaint_id required", nil)
	}
	if input.ScheduledDate.IsZero() {
		return nil, apperrors.NewValidationError("scheduled_date required", nil)
	}
	if input.LaborCents != nil && *input.LaborCents < 0 {
		return nil, apperrors.NewValidationError("labor amount cannot be negative", nil)
	}

	complaint, err := s.complaints.Lookup(ctx, input.ComplaintID)
	if err != nil {
		return nil, err
	}

	underWarranty, err := s.warranty.Check(ctx, complaint.PurchasedArticleID)
	if err != nil {
		return nil, err
	}

	if input.TechnicianID != nil {
		if _, err := s.technicians.GetByID(ctx, *input.TechnicianID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": *input.TechnicianID})
			}
			return nil, apperrors.MapError(err)
		}
	}

	iv := &domain.Intervention{
		ReferenceKey:  generateReferenceKey(),
		ComplaintID:   complaint.ID,
		ClientID:      complaint.ClientID,
		TechnicianID:  input.TechnicianID,
		ScheduledDate: input.ScheduledDate,
		Status:        domain.InterventionStatusPlanned,
		IsFree:        underWarranty,
		LaborCents:    input.LaborCents,
		Comment:       strings.TrimSpace(input.Comment),
	}
	if err := s.interventions.Create(ctx, iv); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, actor, events.Event{
		Type: events.EventInterventionCreated,
		Payload: events.InterventionCreatedPayload{
			InterventionID: iv.ID,
			ComplaintID:    iv.ComplaintID,
			ClientID:       iv.ClientID,
			TechnicianID:   iv.TechnicianID,
			ScheduledDate:  iv.ScheduledDate,
			IsFree:         iv.IsFree,
		},
	})
	return iv, nil
}

// UpdateFields applies partial field updates by staff.
func (s *InterventionService) UpdateFields(ctx context.Context, actor domain.Actor, id string, input InterventionUpdateInput) (*domain.Intervention, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.LaborCents != nil && *input.LaborCents < 0 {
		return nil, apperrors.NewValidationError("labor amount cannot be negative", nil)
	}
	if input.ScheduledDate != nil {
		iv.ScheduledDate = *input.ScheduledDate
	}
	if input.LaborCents != nil {
		iv.LaborCents = input.LaborCents
	}
	if input.Comment != nil {
		iv.Comment = strings.TrimSpace(*input.Comment)
	}
	if err := s.interventions.Update(ctx, iv); err != nil {
		return nil, apperrors.MapError(err)
	}
	return iv, nil
}

// TransitionStatus drives the state machine on behalf of staff.
func (s *InterventionService) TransitionStatus(ctx context.Context, actor domain.Actor, id string, action domain.InterventionAction) (*domain.Intervention, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, iv, action)
}

// TransitionStatusAsTechnician drives the state machine for the assigned
// technician. Cancellation stays staff-only, and a technician may only act
// on interventions currently assigned to them.
func (s *InterventionService) TransitionStatusAsTechnician(ctx context.Context, actor domain.Actor, id string, action domain.InterventionAction) (*domain.Intervention, error) {
	if actor.Role != domain.ActorRoleTechnician {
		return nil, apperrors.NewForbidden("technician role required")
	}
	if !domain.TechnicianMayPerform(action) {
		return nil, apperrors.NewForbidden("action reserved to staff")
	}
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.TechnicianID == nil || *iv.TechnicianID != actor.ID {
		return nil, apperrors.NewNotFound("intervention", map[string]any{"intervention_id": id})
	}
	return s.transition(ctx, actor, iv, action)
}

func (s *InterventionService) transition(ctx context.Context, actor domain.Actor, iv *domain.Intervention, action domain.InterventionAction) (*domain.Intervention, error) {
	next, ok := domain.NextInterventionStatus(iv.Status, action)
	if !ok {
		return nil, apperrors.NewInvalidTransition("transition not allowed", map[string]any{
			"from":   iv.Status,
			"action": action,
		})
	}

	oldStatus := iv.Status
	iv.Status = next
	if next == domain.InterventionStatusCompleted {
		now := time.Now()
		iv.CompletedAt = &now
	}
	if err := s.interventions.Update(ctx, iv); err != nil {
		return nil, apperrors.MapError(err)
	}

	if next == domain.InterventionStatusCompleted {
		s.onCompleted(ctx, iv)
	}

	s.publishEvent(ctx, actor, events.Event{
		Type: events.EventInterventionStatusChanged,
		Payload: events.InterventionStatusChangedPayload{
			InterventionID: iv.ID,
			ClientID:       iv.ClientID,
			TechnicianID:   iv.TechnicianID,
			OldStatus:      oldStatus,
			NewStatus:      next,
		},
	})
	return iv, nil
}

// onCompleted runs completion side effects. Freeing the technician is part
// of the transition; the complaint status sync is best-effort and its
// failure never reverts the completed intervention.
func (s *InterventionService) onCompleted(ctx context.Context, iv *domain.Intervention) {
	if iv.TechnicianID != nil {
		if err := s.technicians.SetAvailability(ctx, *iv.TechnicianID, true); err != nil {
			s.logger.Warn("failed to free technician after completion",
				zap.String("technician_id", *iv.TechnicianID),
				zap.Error(err))
		}
	}
	if err := s.complaints.UpdateStatus(ctx, iv.ComplaintID, complaintStatusResolved); err != nil {
		s.logger.Warn("best-effort complaint status sync failed",
			zap.String("complaint_id", iv.ComplaintID),
			zap.Error(err))
	}
}

// AddPartUsage records a part against the intervention, snapshotting the
// catalogue price at this instant. Later catalogue changes never touch the
// recorded line. Any intervention status is accepted, matching the observed
// behavior of the workflow this replaces.
func (s *InterventionService) AddPartUsage(ctx context.Context, actor domain.Actor, id, partID string, quantity int) (*domain.PartUsage, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", map[string]any{"quantity": quantity})
	}
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.ActorRoleStaff:
	case domain.ActorRoleTechnician:
		if iv.TechnicianID == nil || *iv.TechnicianID != actor.ID {
			return nil, apperrors.NewNotFound("intervention", map[string]any{"intervention_id": id})
		}
	default:
		return nil, apperrors.NewForbidden("staff or assigned technician required")
	}

	part, err := s.catalog.LookupPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	usage := &domain.PartUsage{
		InterventionID: iv.ID,
		PartID:         part.ID,
		PartName:       part.Name,
		Quantity:       quantity,
		UnitPriceCents: part.PriceCents,
	}
	if err := s.parts.Create(ctx, usage); err != nil {
		return nil, apperrors.MapError(err)
	}
	return usage, nil
}

// ReassignTechnician replaces the assigned technician without touching the
// status.
func (s *InterventionService) ReassignTechnician(ctx context.Context, actor domain.Actor, id, technicianID string) (*domain.Intervention, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.technicians.GetByID(ctx, technicianID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	iv.TechnicianID = &technicianID
	if err := s.interventions.Update(ctx, iv); err != nil {
		return nil, apperrors.MapError(err)
	}
	return iv, nil
}

// Delete soft-deletes by driving the intervention to Cancelled; records are
// never physically removed.
func (s *InterventionService) Delete(ctx context.Context, actor domain.Actor, id string) (*domain.Intervention, error) {
	return s.TransitionStatus(ctx, actor, id, domain.InterventionActionCancel)
}

// Get loads an intervention with its part usages attached.
func (s *InterventionService) Get(ctx context.Context, id string) (*domain.Intervention, error) {
	iv, err := s.getIntervention(ctx, id)
	if err != nil {
		return nil, err
	}
	parts, err := s.parts.ListByIntervention(ctx, iv.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	iv.PartsUsed = parts
	return iv, nil
}

// List returns interventions most recently scheduled first.
func (s *InterventionService) List(ctx context.Context, filter repository.InterventionFilter) ([]domain.Intervention, error) {
	items, err := s.interventions.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Stats returns aggregate analytics over interventions.
func (s *InterventionService) Stats(ctx context.Context) (*repository.InterventionStats, error) {
	stats, err := s.interventions.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// InvoiceSummary builds the billing breakdown from the captured fields.
func (s *InterventionService) InvoiceSummary(ctx context.Context, id string) (*billing.InvoiceSummary, bool, error) {
	iv, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	summary := billing.Summarize(iv)
	return &summary, billing.Invoiceable(iv), nil
}

func (s *InterventionService) getIntervention(ctx context.Context, id string) (*domain.Intervention, error) {
	iv, err := s.interventions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("intervention", map[string]any{"intervention_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return iv, nil
}

func (s *InterventionService) publishEvent(ctx context.Context, actor domain.Actor, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Actor = events.Actor{Role: actor.Role, ID: actor.ID}
	s.dispatcher.Publish(ctx, event)
}

func generateReferenceKey() string {
	return "INT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
