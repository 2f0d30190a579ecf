package domain

import "time"

// OTPCode is an ephemeral proof record bound to an email or phone
// identifier. Codes are stored hashed and are single-use: verification
// flips Verified and the row never matches again. Rows are keyed by
// identifier, not user, since an OTP may precede account existence.
type OTPCode struct {
	ID         int64
	Identifier string
	OTPHash    string
	ExpiresAt  time.Time
	Verified   bool
	CreatedAt  time.Time
}
