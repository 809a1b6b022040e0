// Package model defines domain entities for the application.
package model

import "strings"

// Role constants.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Role is the authorization level of a user.
type Role string

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. Password is stored as given to the
// configured credential verifier (plaintext by default).
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SameEmail compares two addresses case-insensitively.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// UserResponse is the public view of a user (never carries the password).
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// ToResponse converts a User to UserResponse.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// AuthState is the persisted session state.
type AuthState struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

// Stats holds collection counts for the admin dashboard.
type Stats struct {
	UserCount   int `json:"userCount"`
	ReportCount int `json:"reportCount"`
}
