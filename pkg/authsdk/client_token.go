package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// SignInWithPassword exchanges email and password for a token pair.
func (c *SDKClient) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type": {"password"},
		"email":      {email},
		"password":   {password},
	})
}

// RefreshSession rotates a refresh token. The old token is spent whether or
// not the caller receives the response, so callers must not run two
// RefreshSession calls for the same token concurrently.
func (c *SDKClient) RefreshSession(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/token", data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// RevokeRefreshToken ends the session a refresh token belongs to. It works
// without an access token, and unknown tokens are not an error.
func (c *SDKClient) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	resp, err := c.postForm(ctx, "/v1/revoke", url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	})
	if err != nil {
		return err
	}
	var out struct{}
	return decodeJSON(resp, &out, http.StatusOK)
}
