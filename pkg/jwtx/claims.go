package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL matches the one hour lifetime the storefront mirrors
// into the sb-access-token cookie.
const DefaultAccessTokenTTL = time.Hour

// Claims are the access-token claims minted by the identity service.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID shared by every token in one refresh chain
	SID string `json:"sid,omitempty"`

	// Email of the authenticated user at issue time
	Email string `json:"email,omitempty"`

	// Authentication Methods Reference, "pwd" for password sign-in
	AMR []string `json:"amr,omitempty"`
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(
	subject, sid, email string,
	amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		Email: email,
		AMR:   amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiryAt checks exp and nbf against now, allowing leeway either
// side for clock skew.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
