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

// EvaluationService records client ratings of completed interventions.
type EvaluationService struct {
	evaluations   repository.EvaluationRepository
	interventions repository.InterventionRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// EvaluationDependencies bundles collaborators for the service.
type EvaluationDependencies struct {
	EvaluationRepo   repository.EvaluationRepository
	InterventionRepo repository.InterventionRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewEvaluationService constructs the service.
func NewEvaluationService(deps EvaluationDependencies) *EvaluationService {
	return &EvaluationService{
		evaluations:   deps.EvaluationRepo,
		interventions: deps.InterventionRepo,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// Create records a rating for a completed intervention owned by the caller.
// One evaluation per intervention.
func (s *EvaluationService) Create(ctx context.Context, actor domain.Actor, interventionID string, rating int, comment string) (*domain.Evaluation, error) {
	if actor.Role != domain.ActorRoleClient {
		return nil, apperrors.NewForbidden("client role required")
	}
	eval := &domain.Evaluation{
		InterventionID: interventionID,
		ClientID:       actor.ID,
		Rating:         rating,
		Comment:        strings.TrimSpace(comment),
	}
	if !eval.RatingValid() {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	iv, err := s.interventions.GetByID(ctx, interventionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("intervention", map[string]any{"intervention_id": interventionID})
		}
		return nil, apperrors.MapError(err)
	}
	if iv.ClientID != actor.ID {
		return nil, apperrors.NewNotFound("intervention", map[string]any{"intervention_id": interventionID})
	}
	if iv.Status != domain.InterventionStatusCompleted {
		return nil, apperrors.NewConflict("only completed interventions can be evaluated", map[string]any{
			"status": iv.Status,
		})
	}
	exists, err := s.evaluations.ExistsForIntervention(ctx, interventionID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, apperrors.NewConflict("intervention already evaluated", map[string]any{
			"intervention_id": interventionID,
		})
	}

	if err := s.evaluations.Create(ctx, eval); err != nil {
		if errors.Is(err, repository.ErrEvaluationExists) {
			return nil, apperrors.NewConflict("intervention already evaluated", map[string]any{
				"intervention_id": interventionID,
			})
		}
		return nil, apperrors.MapError(err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventEvaluationReceived,
			Actor:     events.Actor{Role: actor.Role, ID: actor.ID},
			Timestamp: time.Now(),
			Payload: events.EvaluationReceivedPayload{
				EvaluationID:   eval.ID,
				InterventionID: eval.InterventionID,
				ClientID:       eval.ClientID,
				Rating:         eval.Rating,
			},
		})
	}
	return eval, nil
}

// GetByIntervention returns the evaluation of an intervention, if any.
func (s *EvaluationService) GetByIntervention(ctx context.Context, interventionID string) (*domain.Evaluation, error) {
	eval, err := s.evaluations.GetByIntervention(ctx, interventionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("evaluation", map[string]any{"intervention_id": interventionID})
		}
		return nil, apperrors.MapError(err)
	}
	return eval, nil
}
