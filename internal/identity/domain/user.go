package domain

import (
	"strings"
	"time"
)

type User struct {
	ID               string
	Email            string     // lowercased, unique
	PasswordHash     string     // argon2 encoded
	ConfirmSecret    string     // TOTP secret for email confirmation codes (base32)
	EmailConfirmedAt *time.Time // nil until the confirmation code is redeemed
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Confirmed reports whether the user has redeemed an email confirmation code.
func (u User) Confirmed() bool { return u.EmailConfirmedAt != nil }

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
