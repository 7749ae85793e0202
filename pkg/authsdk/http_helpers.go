package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request, adding a bearer token when one is
// given. Transport failures are wrapped in ErrTransport.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	bearer string,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

func (c *SDKClient) postForm(ctx context.Context, path string, data url.Values) (*http.Response, error) {
	return c.doRequest(ctx, http.MethodPost, path, strings.NewReader(data.Encode()), "", map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

func (c *SDKClient) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(raw), "", map[string]string{
		"Content-Type": "application/json",
	})
}

// decodeJSON decodes a JSON response into target, or returns a typed
// *OAuth2Error when the status is not expectedStatus.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatusNoContent returns a typed error if the response status is not
// 204 No Content.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, body)
	}
	return nil
}
