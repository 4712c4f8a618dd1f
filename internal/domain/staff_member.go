package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleResponsable StaffRole = "RESPONSABLE"
	StaffRoleAdmin       StaffRole = "ADMIN"
)

// StaffMember models a back-office operator who creates interventions,
// manages slots and approves appointment requests.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
