/*
Package authsdk is the client for the storefront identity service.

The storefront server uses it to exchange credentials, rotate refresh tokens
and look up the user behind an access token. shopctl uses the same client
for sign-up and email verification.

	client := authsdk.NewSDKClient("http://localhost:8081")

	tokens, err := client.SignInWithPassword(ctx, email, password)
	user, err := client.GetUser(ctx, tokens.AccessToken)
	rotated, err := client.RefreshSession(ctx, tokens.RefreshToken)

# Errors

Every non-2xx response becomes an *OAuth2Error carrying the HTTP status,
the error code and the description. Compare against the predefined values
with errors.Is, which matches on code:

	if errors.Is(err, authsdk.ErrEmailNotConfirmed) { ... }

Network failures wrap ErrTransport.

# Refresh failures

ClassifyRefreshError decides what a failed RefreshSession means for the
caller's cookies:

  - FailureDefinitive: the token is not found, expired, revoked or malformed.
    Clear the session.
  - FailureReuse: another request already rotated this token. Keep cookies.
  - FailureTransient: transport errors, 5xx, 429 and anything unrecognised.
    Keep cookies and let the caller retry.

The server side of the protocol lives in internal/identity.
*/
package authsdk
