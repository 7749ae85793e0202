package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

// Error codes returned by the identity service. The refresh codes mirror the
// hosted auth provider the storefront was built against.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeServerError          = "server_error"
	ErrorCodeEmailNotConfirmed    = "email_not_confirmed"
	ErrorCodeEmailExists          = "email_exists"
	ErrorCodeWeakPassword         = "weak_password"
	ErrorCodeInvalidCode          = "invalid_code"

	ErrorCodeRefreshTokenNotFound    = "refresh_token_not_found"
	ErrorCodeRefreshTokenExpired     = "refresh_token_expired"
	ErrorCodeRefreshTokenRevoked     = "refresh_token_revoked"
	ErrorCodeBadRefreshToken         = "bad_refresh_token"
	ErrorCodeRefreshTokenAlreadyUsed = "refresh_token_already_used"
)

// OAuth2Error is the wire error of the identity service. It is written by
// the server handlers and parsed back by SDKClient.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so callers can test against the predefined errors.
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	return ok && t.Code == e.Code
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}
	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "Invalid login credentials",
	}
	ErrEmailNotConfirmed = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeEmailNotConfirmed,
		Description: "Email not confirmed",
	}
	ErrEmailExists = &OAuth2Error{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeEmailExists,
		Description: "A user with this email address has already been registered",
	}
	ErrWeakPassword = &OAuth2Error{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeWeakPassword,
		Description: "Password should be at least 6 characters",
	}
	ErrInvalidCode = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "Confirmation code is invalid or has expired",
	}
	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}
	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrRefreshTokenNotFound = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRefreshTokenNotFound,
		Description: "Invalid Refresh Token: Refresh Token Not Found",
	}
	ErrRefreshTokenExpired = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRefreshTokenExpired,
		Description: "Invalid Refresh Token: Refresh Token Expired",
	}
	ErrRefreshTokenRevoked = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRefreshTokenRevoked,
		Description: "Invalid Refresh Token: Session Revoked",
	}
	ErrBadRefreshToken = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeBadRefreshToken,
		Description: "Invalid Refresh Token: malformed token",
	}
	ErrRefreshTokenAlreadyUsed = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRefreshTokenAlreadyUsed,
		Description: "Invalid Refresh Token: Already Used",
	}
)

// NewOAuth2Error creates a new OAuth2Error.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: statusCode, Code: code, Description: description}
}

// FailureClass tells the storefront what a failed refresh means for the
// cookies it holds.
type FailureClass int

const (
	// FailureTransient keeps the cookies; the caller may retry later.
	FailureTransient FailureClass = iota
	// FailureDefinitive means the refresh token is dead; clear everything.
	FailureDefinitive
	// FailureReuse is a racing request that already rotated the token. It is
	// handled like FailureTransient.
	FailureReuse
)

func (c FailureClass) String() string {
	switch c {
	case FailureDefinitive:
		return "definitive"
	case FailureReuse:
		return "reuse"
	default:
		return "transient"
	}
}

// ClassifyRefreshError maps a RefreshSession error to a FailureClass.
//
// Known codes decide first. Otherwise the description is matched the way
// the hosted provider's messages are phrased. Anything unrecognised,
// including transport errors, 5xx and 429, is transient so a blip never
// logs the customer out.
func ClassifyRefreshError(err error) FailureClass {
	var oe *OAuth2Error
	if !errors.As(err, &oe) {
		return FailureTransient
	}

	switch oe.Code {
	case ErrorCodeRefreshTokenAlreadyUsed:
		return FailureReuse
	case ErrorCodeRefreshTokenNotFound,
		ErrorCodeRefreshTokenExpired,
		ErrorCodeRefreshTokenRevoked,
		ErrorCodeBadRefreshToken,
		ErrorCodeInvalidGrant:
		return FailureDefinitive
	}

	if oe.StatusCode >= http.StatusInternalServerError || oe.StatusCode == http.StatusTooManyRequests {
		return FailureTransient
	}

	// "Already used" descriptions also start with "Invalid Refresh Token"
	desc := strings.ToLower(oe.Description)
	switch {
	case strings.Contains(desc, "already used"):
		return FailureReuse
	case strings.Contains(desc, "invalid refresh token"),
		strings.Contains(desc, "expired"),
		strings.Contains(desc, "malformed"),
		strings.Contains(desc, "revoked"):
		return FailureDefinitive
	}
	return FailureTransient
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
