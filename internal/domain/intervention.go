package domain

import "time"

// InterventionStatus enumerates lifecycle states for interventions.
type InterventionStatus string

const (
	InterventionStatusPlanned    InterventionStatus = "PLANNED"
	InterventionStatusInProgress InterventionStatus = "IN_PROGRESS"
	InterventionStatusCompleted  InterventionStatus = "COMPLETED"
	InterventionStatusCancelled  InterventionStatus = "CANCELLED"
)

// InterventionAction names a transition request on an intervention.
type InterventionAction string

const (
	InterventionActionStart    InterventionAction = "start"
	InterventionActionComplete InterventionAction = "complete"
	InterventionActionCancel   InterventionAction = "cancel"
)

// interventionTransitions is the authoritative (from, action) -> to table.
// Completed and Cancelled are terminal; anything not listed is rejected.
var interventionTransitions = map[InterventionStatus]map[InterventionAction]InterventionStatus{
	InterventionStatusPlanned: {
		InterventionActionStart:  InterventionStatusInProgress,
		InterventionActionCancel: InterventionStatusCancelled,
	},
	InterventionStatusInProgress: {
		InterventionActionComplete: InterventionStatusCompleted,
		InterventionActionCancel:   InterventionStatusCancelled,
	},
}

// NextInterventionStatus resolves a transition against the table.
func NextInterventionStatus(current InterventionStatus, action InterventionAction) (InterventionStatus, bool) {
	next, ok := interventionTransitions[current][action]
	return next, ok
}

// TechnicianMayPerform reports whether the action is open to the assigned
// technician at all. Cancellation is reserved to staff.
func TechnicianMayPerform(action InterventionAction) bool {
	return action == InterventionActionStart || action == InterventionActionComplete
}

// Intervention is the aggregate for a repair visit tied to a complaint.
type Intervention struct {
	ID            string
	ReferenceKey  string
	ComplaintID   string
	ClientID      string
	TechnicianID  *string
	ScheduledDate time.Time
	Status        InterventionStatus
	// IsFree reflects the warranty status at creation time only and is
	// never mutated afterward, even if a later warranty check disagrees.
	IsFree      bool
	LaborCents  *int64
	Comment     string
	PartsUsed   []PartUsage
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// PartUsage records a part consumed by an intervention. UnitPriceCents is a
// snapshot taken when the part was added and is never refreshed from the
// catalogue.
type PartUsage struct {
	ID             string
	InterventionID string
	PartID         string
	PartName       string
	Quantity       int
	UnitPriceCents int64
	CreatedAt      time.Time
}

// SubtotalCents returns quantity times the snapshotted unit price.
func (p PartUsage) SubtotalCents() int64 {
	return int64(p.Quantity) * p.UnitPriceCents
}
