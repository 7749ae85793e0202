package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotConfirmed  = errors.New("email_not_confirmed")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("weak_password")
	ErrEmailExists        = errors.New("email_exists")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrUserNotFound       = errors.New("user_not_found")

	// Refresh grant failures, one per wire code.
	ErrRefreshNotFound    = errors.New("refresh_token_not_found")
	ErrRefreshExpired     = errors.New("refresh_token_expired")
	ErrRefreshRevoked     = errors.New("refresh_token_revoked")
	ErrRefreshMalformed   = errors.New("bad_refresh_token")
	ErrRefreshAlreadyUsed = errors.New("refresh_token_already_used")
)
