package session

import (
	"errors"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
)

var (
	// ErrUnauthorized means there is no session to resolve.
	ErrUnauthorized = errors.New("session: unauthorized")

	// ErrPartialAuth means the marker cookie is set but both tokens are
	// gone. Callers answer 204 so the client forces a fresh login.
	ErrPartialAuth = errors.New("session: marker present without credentials")

	// ErrTransientRefresh covers network errors, provider 5xx and a token
	// that a racing request already rotated. Cookies are kept.
	ErrTransientRefresh = errors.New("session: refresh failed, retry later")

	// ErrDefinitiveRefresh means the refresh token is invalid, expired,
	// malformed or revoked. Cookies are cleared.
	ErrDefinitiveRefresh = errors.New("session: refresh token rejected")

	// ErrRefreshTimeout is returned to a caller that waited on the in-flight
	// refresh twice without a result. It is transient.
	ErrRefreshTimeout = errors.New("session: timed out waiting for refresh")
)

// RefreshError is a classified refresh failure. It matches
// ErrDefinitiveRefresh or ErrTransientRefresh through errors.Is depending on
// its class, and unwraps to the provider error.
type RefreshError struct {
	Class authsdk.FailureClass
	Err   error
}

func (e *RefreshError) Error() string {
	return "session: " + e.Class.String() + " refresh failure: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool {
	switch target {
	case ErrDefinitiveRefresh:
		return e.Class == authsdk.FailureDefinitive
	case ErrTransientRefresh:
		return e.Class != authsdk.FailureDefinitive
	}
	return false
}

// Reason is a short machine-readable label for err, used in 401 bodies so
// clients can tell a lost session from one that may recover.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrPartialAuth):
		return "partial_auth"
	case errors.Is(err, ErrDefinitiveRefresh):
		return "session_expired"
	case errors.Is(err, ErrTransientRefresh):
		return "refresh_unavailable"
	default:
		return "unauthenticated"
	}
}
