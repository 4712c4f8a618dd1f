package service

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// TechnicianService handles the technician directory.
type TechnicianService struct {
	technicians repository.TechnicianRepository
	bcryptCost  int
	logger      *zap.Logger
}

// NewTechnicianService builds the service.
func NewTechnicianService(technicians repository.TechnicianRepository, bcryptCost int, logger *zap.Logger) *TechnicianService {
	return &TechnicianService{technicians: technicians, bcryptCost: bcryptCost, logger: logger}
}

// CreateTechnicianInput carries fields for onboarding a technician.
type CreateTechnicianInput struct {
	Name      string
	Email     string
	Password  string
	Specialty string
}

// Create onboards a technician account. Staff only.
func (s *TechnicianService) Create(ctx context.Context, actor domain.Actor, input CreateTechnicianInput) (*domain.Technician, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can onboard technicians")
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	if _, err := s.technicians.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if err != pgx.ErrNoRows {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	technician := &domain.Technician{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Specialty:    input.Specialty,
		IsAvailable:  true,
	}
	if err := s.technicians.Create(ctx, technician); err != nil {
		return nil, err
	}

	s.logger.Info("technician onboarded",
		zap.String("technician_id", technician.ID),
		zap.String("specialty", technician.Specialty))
	return technician, nil
}

// Get fetches a single technician.
func (s *TechnicianService) Get(ctx context.Context, id string) (*domain.Technician, error) {
	technician, err := s.technicians.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("technician", map[string]any{"id": id})
		}
		return nil, err
	}
	return technician, nil
}

// List returns the technician directory, optionally filtered to a
// specialty or to currently available technicians.
func (s *TechnicianService) List(ctx context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	return s.technicians.List(ctx, filter)
}

// SetAvailability flips a technician's availability flag. Staff only.
func (s *TechnicianService) SetAvailability(ctx context.Context, actor domain.Actor, id string, available bool) error {
	if !actor.IsStaff() {
		return apperrors.NewForbidden("only staff can update availability")
	}
	if err := s.technicians.SetAvailability(ctx, id, available); err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("technician", map[string]any{"id": id})
		}
		return err
	}
	return nil
}
