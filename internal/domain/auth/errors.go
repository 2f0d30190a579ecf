package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input, such as an empty token subject.
	ErrValidation = errors.New("auth: validation failed")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two causes are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailTaken signals a registration conflict on email.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrPhoneTaken signals a registration conflict on phone number.
	ErrPhoneTaken = errors.New("auth: phone already registered")
	// ErrInvalidOrExpiredOTP covers missing, mismatched, consumed, and expired codes.
	ErrInvalidOrExpiredOTP = errors.New("auth: invalid or expired otp")
	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrMalformedToken indicates a token that failed decoding or signature checks.
	ErrMalformedToken = errors.New("auth: malformed token")
	// ErrWrongTokenType indicates an access token presented as a refresh token or vice versa.
	ErrWrongTokenType = errors.New("auth: wrong token type")
	// ErrTokenNotFoundOrRevoked indicates a refresh token with no active store row.
	ErrTokenNotFoundOrRevoked = errors.New("auth: refresh token not found or revoked")
	// ErrInvalidToken indicates a refresh token unknown to the store on logout.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrIdentityIncomplete signals a federated identity without a verified email.
	ErrIdentityIncomplete = errors.New("auth: external identity incomplete")
	// ErrUserNotFound signals that a token subject no longer resolves to a user.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrNotFound signals an absent referenced resource.
	ErrNotFound = errors.New("auth: not found")
	// ErrForbidden signals an authenticated caller lacking authorization.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrConflict signals a unique-constraint race that survived a retry.
	ErrConflict = errors.New("auth: conflict")
	// ErrRateLimited signals an OTP request inside the cooldown window.
	ErrRateLimited = errors.New("auth: rate limited")
)

// DeliveryError wraps a notification dispatch failure. The stored OTP code
// is not rolled back when dispatch fails.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("auth: otp delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
