package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// EdDSAVerifier validates JWTs signed using EdDSA (Ed25519).
type EdDSAVerifier struct {
	keys   *KeySet
	issuer string
	aud    []string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifierEdDSA creates a verifier using a KeySet of Ed25519 public keys.
func NewVerifierEdDSA(keys *KeySet, issuer string, aud []string) *EdDSAVerifier {
	return &EdDSAVerifier{
		keys:   keys,
		issuer: issuer,
		aud:    aud,
		leeway: 5 * time.Second,
		now:    time.Now,
	}
}

// WithClock swaps the time source used for exp/nbf checks.
func (v *EdDSAVerifier) WithClock(now func() time.Time) *EdDSAVerifier {
	v.now = now
	return v
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *EdDSAVerifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// exp/nbf are checked below against the injectable clock
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrMalformed)
		}

		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownKID) {
			return Claims{}, ErrUnknownKID
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaim
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrInvalidClaim)
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryAt(v.now().UTC(), v.leeway); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}

var _ Verifier = (*EdDSAVerifier)(nil)
