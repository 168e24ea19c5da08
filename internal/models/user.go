package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// UserType describes how a member relates to the institution.
type UserType string

const (
	UserTypeStudent     UserType = "student"
	UserTypeStaff       UserType = "staff"
	UserTypeFaculty     UserType = "faculty"
	UserTypeStakeholder UserType = "stakeholder"
)

// User is a row of the users table. Accounts are managed by the identity
// provider; this service only reads them.
type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"fullName"`
	Role          UserRole  `db:"role" json:"role"`
	UserType      *string   `db:"user_type" json:"userType,omitempty"`
	Department    *string   `db:"department" json:"department,omitempty"`
	ContactNumber *string   `db:"contact_number" json:"contactNumber,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
