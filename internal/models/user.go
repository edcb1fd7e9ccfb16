package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent     UserRole = "STUDENT"
	RoleCohortOwner UserRole = "COHORT_OWNER"
	RoleHOD         UserRole = "HOD"
	RolePlacement   UserRole = "PLACEMENT"
	RolePrincipal   UserRole = "PRINCIPAL"
	RoleAdmin       UserRole = "ADMIN"
)

// ReviewerRoles lists the roles that own a stage in the review pipeline.
func ReviewerRoles() []UserRole {
	return []UserRole{RoleCohortOwner, RoleHOD, RolePlacement, RolePrincipal}
}

// User represents a portal user stored in the users table. Department is nil
// for roles that are not department-scoped.
type User struct {
	ID           string      `db:"id" json:"id"`
	Email        string      `db:"email" json:"email"`
	PasswordHash string      `db:"password_hash" json:"-"`
	FullName     string      `db:"full_name" json:"full_name"`
	Role         UserRole    `db:"role" json:"role"`
	Department   *Department `db:"department" json:"department,omitempty"`
	Active       bool        `db:"active" json:"active"`
	LastLogin    *time.Time  `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}
