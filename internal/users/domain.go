// Package users implements the registration and activation lifecycle:
// account creation, activation codes, and the PENDING to ACTIVE transition.
package users

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-accounts/atlas-accounts/internal/shared"
)

// Status is the user lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	// INACTIVE and SUSPENDED exist in the schema for future flows; no
	// transition into them is implemented.
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ActivatedAt  *time.Time
}

// IsActive reports whether the account completed activation.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// VerifyPassword checks the plaintext password against the stored hash.
// A mismatch or a malformed hash both report false, never an error.
func (u *User) VerifyPassword(password string) bool {
	if u == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

const bcryptCost = 12

// HashPassword derives the stored credential from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail enforces the email format accepted at registration.
func ValidateEmail(email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return shared.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters with
// at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return shared.ErrInvalidPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return shared.ErrInvalidPassword
	}
	return nil
}

// CodeTTL is how long an activation code stays valid after issuance.
const CodeTTL = time.Minute

// ActivationCode is a single-use, short-lived proof of email ownership.
type ActivationCode struct {
	UserID    uuid.UUID
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
	IsUsed    bool
}

// NewActivationCode issues a fresh 4-digit code for the user, expiring
// CodeTTL after now.
func NewActivationCode(userID uuid.UUID, now time.Time) (ActivationCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return ActivationCode{}, fmt.Errorf("users: generate code: %w", err)
	}
	return ActivationCode{
		UserID:    userID,
		Code:      fmt.Sprintf("%04d", n.Int64()),
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}, nil
}

// Valid reports whether the code can still be redeemed at the given instant.
func (c *ActivationCode) Valid(now time.Time) bool {
	return c != nil && !c.IsUsed && now.Before(c.ExpiresAt)
}

// Expired reports whether the code's lifetime has elapsed.
func (c *ActivationCode) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}
