package models

import "time"

// Theme is the persisted UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// AuthState is the persisted application context of one signed-in browser.
type AuthState struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	Role           UserRole  `db:"role" json:"role"`
	DisplayName    string    `db:"display_name" json:"displayName"`
	Email          string    `db:"email" json:"email"`
	TokenSealed    []byte    `db:"token_sealed" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"tokenExpiresAt"`
	Theme          Theme     `db:"theme" json:"theme"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// AuthNotice is a message queued for display after a forced sign-out. It is
// keyed by the cleared state id, the only handle the signed-out browser keeps.
type AuthNotice struct {
	ID        string    `db:"id" json:"id"`
	StateID   string    `db:"state_id" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	Code      string    `db:"code" json:"code"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// RevokedSessionMessage is shown after the upstream revoked the caller's session.
const RevokedSessionMessage = "Your session was ended because you signed in on another device."

// CreateAuthStateRequest hydrates the application context for a bearer token.
type CreateAuthStateRequest struct {
	Theme Theme `json:"theme" validate:"omitempty,oneof=light dark system"`
}

// UpdateThemeRequest changes the persisted theme.
type UpdateThemeRequest struct {
	Theme Theme `json:"theme" validate:"required,oneof=light dark system"`
}

// AuthSessionView is returned to the browser after hydration.
type AuthSessionView struct {
	StateID          string   `json:"stateId"`
	UserID           string   `json:"userId"`
	DisplayName      string   `json:"displayName"`
	Email            string   `json:"email,omitempty"`
	Role             UserRole `json:"role"`
	Theme            Theme    `json:"theme"`
	ExpiresInSeconds int64    `json:"expiresInSeconds"`
}
