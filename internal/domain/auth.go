package domain

import "time"

// SubjectType differentiates client, staff and technician tokens.
type SubjectType string

const (
	SubjectTypeUser       SubjectType = "USER"
	SubjectTypeStaff      SubjectType = "STAFF"
	SubjectTypeTechnician SubjectType = "TECHNICIAN"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *StaffRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// ActorRole classifies the already-resolved caller handed to core
// operations. Authorization middleware lives in the HTTP layer; services
// only enforce business-level restrictions.
type ActorRole string

const (
	ActorRoleClient     ActorRole = "CLIENT"
	ActorRoleStaff      ActorRole = "STAFF"
	ActorRoleTechnician ActorRole = "TECHNICIAN"
)

// Actor is the resolved identity passed into core operations.
type Actor struct {
	Role ActorRole
	ID   string
}

// IsStaff reports whether the actor carries staff privileges.
func (a Actor) IsStaff() bool {
	return a.Role == ActorRoleStaff
}
