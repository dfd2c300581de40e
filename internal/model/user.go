package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
)

// User role constants. Customers are CRM contacts, not operators; they
// never count against the team-member limit.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleStaff      = "staff"
	RoleCustomer   = "customer"
)

// User represents an operator or customer within an organization
type User struct {
	Base
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	Name           string     `json:"name" db:"name"`
	Password       string     `json:"password,omitempty" db:"-"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	Phone          *string    `json:"phone" db:"phone"`
	Role           string     `json:"role" db:"role"`
	Status         string     `json:"status" db:"status"`
	EmailVerified  bool       `json:"email_verified" db:"email_verified"`
	LastLoginAt    *time.Time `json:"last_login_at" db:"last_login_at"`
	Settings       JSONMap    `json:"settings" db:"settings"`
}

// IsTeamMember reports whether the user counts against the plan's
// team-member limit.
func (u *User) IsTeamMember() bool {
	return u.Role != RoleCustomer
}

// InviteTeamMemberRequest represents team member creation parameters
type InviteTeamMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
	Role  string `json:"role" binding:"required,oneof=admin technician staff"`
}

type UserFilters struct {
	OrganizationID uuid.UUID
	Role           string
	Status         string
	SearchTerm     string
}
