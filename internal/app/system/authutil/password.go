// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password constants
const (
	// MaxPasswordBytes is bcrypt's input limit; longer input is rejected
	// rather than silently truncated.
	MaxPasswordBytes = 72
	BcryptCost       = 12
)

// Password validation errors
var (
	ErrPasswordEmpty   = errors.New("Password is required.")
	ErrPasswordTooLong = errors.New("Password must be at most 72 bytes.")
)

// ValidatePassword checks if a password can be hashed.
// Returns nil if valid, or an error describing the issue.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword hashes a password using bcrypt (salted, cost BcryptCost).
// The password should be validated with ValidatePassword first.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain-text password with a bcrypt hash in
// constant time. Returns true if the password matches.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// DummyCheck burns the same time as a real CheckPassword. Call it when no
// account matched so response timing does not reveal unknown emails.
func DummyCheck(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stratadrive-dummy"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
