package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// CreateAppointmentRequest payload for a client submission.
type CreateAppointmentRequest struct {
	SlotID      *string   `json:"slot_id"`
	DesiredDate time.Time `json:"desired_date"`
	Preference  string    `json:"preference"`
	Motive      string    `json:"motive"`
}

// TreatAppointmentRequest payload for a staff decision.
type TreatAppointmentRequest struct {
	Accept         bool    `json:"accept"`
	OverrideSlotID *string `json:"override_slot_id"`
	InterventionID string  `json:"intervention_id"`
	Comment        string  `json:"comment"`
}

// AppointmentResponse represents a request and its outcome.
type AppointmentResponse struct {
	ID          string                          `json:"id"`
	ClientID    string                          `json:"client_id"`
	SlotID      *string                         `json:"slot_id"`
	DesiredDate time.Time                       `json:"desired_date"`
	Preference  string                          `json:"preference"`
	Motive      string                          `json:"motive"`
	Status      domain.AppointmentRequestStatus `json:"status"`
	Comment     string                          `json:"comment"`
	CreatedAt   time.Time                       `json:"created_at"`
	ProcessedAt *time.Time                      `json:"processed_at"`
}
