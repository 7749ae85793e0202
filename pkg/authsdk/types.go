package authsdk

import "time"

// ErrorResponse is the JSON body of an identity error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// User is the identity as the provider reports it. The storefront never
// stores it; it is re-derived from the access token on every resolution.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	CreatedAt        time.Time  `json:"created_at"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// TokenResponse is returned by POST /v1/token for both grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// ExpiresAt is the access token expiry as a unix timestamp.
	ExpiresAt int64 `json:"expires_at"`

	User User `json:"user"`
}

// SignUpRequest is the body of POST /v1/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResponse is returned by POST /v1/signup.
type SignUpResponse struct {
	User                 User `json:"user"`
	ConfirmationRequired bool `json:"confirmation_required"`
}

// VerifyRequest is the body of POST /v1/verify.
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
