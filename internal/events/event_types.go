package events

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInterventionCreated       EventType = "intervention_created"
	EventInterventionStatusChanged EventType = "intervention_status_changed"
	EventAppointmentStatusChanged  EventType = "appointment_status_changed"
	EventEvaluationReceived        EventType = "evaluation_received"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role domain.ActorRole `json:"role"`
	ID   string           `json:"id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// InterventionCreatedPayload payload.
type InterventionCreatedPayload struct {
	InterventionID string    `json:"intervention_id"`
	ComplaintID    string    `json:"complaint_id"`
	ClientID       string    `json:"client_id"`
	TechnicianID   *string   `json:"technician_id,omitempty"`
	ScheduledDate  time.Time `json:"scheduled_date"`
	IsFree         bool      `json:"is_free"`
}

// InterventionStatusChangedPayload payload.
type InterventionStatusChangedPayload struct {
	InterventionID string                    `json:"intervention_id"`
	ClientID       string                    `json:"client_id"`
	TechnicianID   *string                   `json:"technician_id,omitempty"`
	OldStatus      domain.InterventionStatus `json:"old_status"`
	NewStatus      domain.InterventionStatus `json:"new_status"`
}

// AppointmentStatusChangedPayload payload.
type AppointmentStatusChangedPayload struct {
	RequestID string                          `json:"request_id"`
	ClientID  string                          `json:"client_id"`
	SlotID    *string                         `json:"slot_id,omitempty"`
	OldStatus domain.AppointmentRequestStatus `json:"old_status"`
	NewStatus domain.AppointmentRequestStatus `json:"new_status"`
}

// EvaluationReceivedPayload payload.
type EvaluationReceivedPayload struct {
	EvaluationID   string `json:"evaluation_id"`
	InterventionID string `json:"intervention_id"`
	ClientID       string `json:"client_id"`
	Rating         int    `json:"rating"`
}
