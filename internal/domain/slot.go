package domain

import "time"

// Slot is a technician's bookable time window over [StartTime, EndTime).
// For a fixed technician no two slots overlap, and IsReserved holds exactly
// when InterventionID is set.
type Slot struct {
	ID             string
	TechnicianID   string
	StartTime      time.Time
	EndTime        time.Time
	IsReserved     bool
	InterventionID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Overlaps reports whether the half-open intervals of two slots intersect.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}
