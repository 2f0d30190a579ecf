// Package otp generates and verifies one-time passcodes. Codes are
// six-digit numerics stored only as bcrypt hashes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// Generate returns a six-digit code uniform over [100000, 999999],
// drawn from crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Hash returns a bcrypt hash of the code for storage.
func Hash(code string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(sum), nil
}

// Verify checks a presented code against a stored hash.
func Verify(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
