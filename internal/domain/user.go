package domain

import "time"

type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleAdmin   UserRole = "admin"
	UserRoleService UserRole = "service"
)

// User is the local projection of an approved marketplace member.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	FCMToken      string     `json:"-"`
	RentalBlocked bool       `json:"rental_blocked"`
	BlockedAt     *time.Time `json:"blocked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}

// IsTrusted reports whether the caller may settle payments on behalf of the platform.
func (a Actor) IsTrusted() bool {
	return a.Role == UserRoleAdmin || a.Role == UserRoleService
}
