package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// CreateInterventionRequest payload.
type CreateInterventionRequest struct {
	ComplaintID   string    `json:"complaint_id"`
	TechnicianID  *string   `json:"technician_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
	LaborCents    *int64    `json:"labor_cents"`
	Comment       string    `json:"comment"`
}

// UpdateInterventionRequest payload; absent fields are left untouched.
type UpdateInterventionRequest struct {
	ScheduledDate *time.Time `json:"scheduled_date"`
	LaborCents    *int64     `json:"labor_cents"`
	Comment       *string    `json:"comment"`
}

// TransitionRequest payload for lifecycle actions.
type TransitionRequest struct {
	Action domain.InterventionAction `json:"action"`
}

// AddPartUsageRequest payload.
type AddPartUsageRequest struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

// ReassignTechnicianRequest payload.
type ReassignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// PartUsageResponse represents a consumed part line.
type PartUsageResponse struct {
	ID             string    `json:"id"`
	PartID         string    `json:"part_id"`
	PartName       string    `json:"part_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// InterventionSummary response.
type InterventionSummary struct {
	ID            string                    `json:"id"`
	ReferenceKey  string                    `json:"reference_key"`
	ComplaintID   string                    `json:"complaint_id"`
	ClientID      string                    `json:"client_id"`
	TechnicianID  *string                   `json:"technician_id"`
	ScheduledDate time.Time                 `json:"scheduled_date"`
	Status        domain.InterventionStatus `json:"status"`
	IsFree        bool                      `json:"is_free"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// InterventionDetailResponse provides full intervention info.
type InterventionDetailResponse struct {
	ID            string                    `json:"id"`
	ReferenceKey  string                    `json:"reference_key"`
	ComplaintID   string                    `json:"complaint_id"`
	ClientID      string                    `json:"client_id"`
	TechnicianID  *string                   `json:"technician_id"`
	ScheduledDate time.Time                 `json:"scheduled_date"`
	Status        domain.InterventionStatus `json:"status"`
	IsFree        bool                      `json:"is_free"`
	LaborCents    *int64                    `json:"labor_cents"`
	Comment       string                    `json:"comment"`
	PartsUsed     []PartUsageResponse       `json:"parts_used"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
	CompletedAt   *time.Time                `json:"completed_at"`
}
