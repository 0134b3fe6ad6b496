package domain

import "time"

type ID string

type Role string

const (
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// CanRefresh reports whether an account in this status may complete a
// session refresh. Suspension is terminal for session purposes.
func (s Status) CanRefresh() bool {
	return s == StatusActive || s == StatusInactive
}

type Account struct {
	ID           ID
	Role         Role
	Status       Status
	Name         string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}
