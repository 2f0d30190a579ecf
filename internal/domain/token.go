package domain

import "time"

// RefreshToken persists one issued refresh token. Rows are never deleted
// except via the owning user's cascade; revocation flips Revoked.
type RefreshToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the token can still be exchanged at the given time.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
