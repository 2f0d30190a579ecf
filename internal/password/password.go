package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer passwords are truncated
// rather than rejected so hashing and verification agree.
const maxPasswordBytes = 72

// Hash returns a bcrypt hash of the password.
func Hash(password string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword(bound(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(sum), nil
}

// Verify checks a password against a bcrypt hash. A malformed hash is
// treated as a mismatch, never an error.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bound(password)) == nil
}

func bound(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
