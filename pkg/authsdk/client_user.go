package authsdk

import (
	"context"
	"net/http"
)

// GetUser returns the user that accessToken was issued to.
func (c *SDKClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/user", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes every refresh token of the session behind accessToken.
func (c *SDKClient) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/logout", nil, accessToken, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// SignUp registers a new user.
func (c *SDKClient) SignUp(ctx context.Context, email, password string) (*SignUpResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/signup", SignUpRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var out SignUpResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms a user's email address with the emailed code.
func (c *SDKClient) VerifyEmail(ctx context.Context, email, code string) (*User, error) {
	resp, err := c.postJSON(ctx, "/v1/verify", VerifyRequest{Email: email, Code: code})
	if err != nil {
		return nil, err
	}

	var out struct {
		User User `json:"user"`
	}
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}
