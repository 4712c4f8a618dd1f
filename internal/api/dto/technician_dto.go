package dto

import "time"

// CreateTechnicianRequest payload for onboarding.
type CreateTechnicianRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Specialty string `json:"specialty"`
}

// SetAvailabilityRequest payload.
type SetAvailabilityRequest struct {
	Available bool `json:"available"`
}

// TechnicianResponse represents a directory entry.
type TechnicianResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Specialty   string    `json:"specialty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}
