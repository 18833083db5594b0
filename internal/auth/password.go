// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Unknown users get a dummy comparison to keep login timing constant

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user doesn't exist, so that login
// timing can't be used to enumerate valid usernames.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// MinPasswordLength is enforced at account creation.
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyCheck burns the same time as a real comparison. Call it on the
// user-not-found path before rejecting the login.
func DummyCheck(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
