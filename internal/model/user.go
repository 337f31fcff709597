package model

import "time"

const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleGuest     = "guest"
)

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	OrgID       *int64    `json:"org_id"`
	OrgName     string    `json:"org_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Session struct {
	ID        int64
	UserID    int64
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidRole reports whether role is one of the three platform roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOrganizer, RoleGuest:
		return true
	}
	return false
}
