package domain

import "time"

// Technician models a field technician who performs interventions.
type Technician struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Specialty    string
	// IsAvailable is flipped back to true automatically when one of the
	// technician's interventions completes.
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
