package domain

import "time"

// SubjectType differentiates requester vs operator tokens.
type SubjectType string

const (
	SubjectTypeUser     SubjectType = "USER"
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// OperatorRole enumerates internal operator roles.
type OperatorRole string

const (
	RoleAgent      OperatorRole = "AGENT"
	RoleSupervisor OperatorRole = "SUPERVISOR"
	RoleAdmin      OperatorRole = "ADMIN"
)

// CanAssign reports whether the role carries the ticket-assignment capability.
func (r OperatorRole) CanAssign() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// Operator models a staff member eligible to handle tickets.
type Operator struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
