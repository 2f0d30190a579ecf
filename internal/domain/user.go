package domain

import "time"

// Auth provider values recorded on a user at creation time.
const (
	ProviderEmail  = "email"
	ProviderPhone  = "phone"
	ProviderGoogle = "google"
)

// Role values. Role defaults to RoleUser.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. At least one of Email, Phone, or
// ExternalSubjectID is set; empty strings map to NULL in storage so
// uniqueness is enforced only on populated identifiers.
type User struct {
	ID                int64
	Name              string
	Email             string
	EmailVerified     bool
	Phone             string
	PhoneVerified     bool
	PasswordHash      string
	AuthProvider      string
	ExternalSubjectID string
	Role              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
