package models

import (
	"strings"
	"time"
)

// UserRole is the canonical role representation used throughout the portal.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
	RoleUnknown UserRole = ""
)

// ParseRole canonicalises a role name. Unrecognised names map to RoleUnknown.
func ParseRole(raw string) UserRole {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return RoleStudent
	case "teacher", "tutor":
		return RoleTeacher
	case "admin", "superadmin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// Principal is the authenticated caller of a portal request.
type Principal struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      UserRole  `json:"role"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	StateID   string    `json:"stateId,omitempty"`
}

// IsTeacher reports whether the principal acts as a teacher.
func (p *Principal) IsTeacher() bool {
	return p != nil && p.Role == RoleTeacher
}

// IsStudent reports whether the principal acts as a student.
func (p *Principal) IsStudent() bool {
	return p != nil && p.Role == RoleStudent
}
