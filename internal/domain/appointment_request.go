package domain

import "time"

// AppointmentRequestStatus enumerates request lifecycle states.
type AppointmentRequestStatus string

const (
	AppointmentStatusPending   AppointmentRequestStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentRequestStatus = "CONFIRMED"
	AppointmentStatusRejected  AppointmentRequestStatus = "REJECTED"
	AppointmentStatusCancelled AppointmentRequestStatus = "CANCELLED"
)

// AppointmentRequest is a client-submitted request to book a slot, subject
// to staff approval. At most one request per client is active at a time:
// Pending, or Confirmed with a bound slot whose end time is still ahead.
type AppointmentRequest struct {
	ID          string
	ClientID    string
	SlotID      *string
	DesiredDate time.Time
	Preference  string
	Motive      string
	Status      AppointmentRequestStatus
	Comment     string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// CanBeTreated reports whether staff may still accept or reject the request.
func (r AppointmentRequest) CanBeTreated() bool {
	return r.Status == AppointmentStatusPending
}

// CanBeCancelled reports whether the request may still be cancelled.
func (r AppointmentRequest) CanBeCancelled() bool {
	return r.Status == AppointmentStatusPending || r.Status == AppointmentStatusConfirmed
}
