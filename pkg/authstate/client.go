package authstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// LoginPath is where Logout navigates to.
const LoginPath = "/auth/login"

// APIError is a storefront error response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Reason     string `json:"reason,omitempty"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("storefront: %d %s (%s)", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("storefront: %d %s", e.StatusCode, e.Message)
}

// Client talks to the storefront API with cookies from a FileJar and keeps a
// Watcher up to date. It is the Watcher's Source.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	Jar       *FileJar
	Watcher   *Watcher
	Navigator *Navigator

	// OnRefresh runs after a successful login so views can reload data that
	// depends on the user.
	OnRefresh func(ctx context.Context)
}

var _ Source = (*Client)(nil)

func NewClient(baseURL string, jar *FileJar) *Client {
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
		Jar:     jar,
	}
	c.Watcher = NewWatcher(c)
	c.Navigator = &Navigator{Watcher: c.Watcher}
	return c
}

// EventsURL is the websocket address of the server's auth event stream.
func (c *Client) EventsURL() string {
	u := c.BaseURL + "/api/auth/events"
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		return "wss://" + rest
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

// Session asks the server who the cookies belong to. No session is a nil
// user and a nil error.
func (c *Client) Session(ctx context.Context) (*authsdk.User, error) {
	var out struct {
		User authsdk.User `json:"user"`
	}
	status, err := c.Do(ctx, http.MethodGet, "/api/auth/session", nil, &out)
	switch {
	case status == http.StatusNoContent:
		return nil, ErrPartialAuth
	case status == http.StatusUnauthorized:
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Marker() bool {
	return c.Jar.Marker()
}

// Login signs in, re-checks the state and tells other processes sharing the
// jar.
func (c *Client) Login(ctx context.Context, email, password string) (State, error) {
	body := map[string]string{"email": email, "password": password}
	if _, err := c.Do(ctx, http.MethodPost, "/api/auth/login", body, nil); err != nil {
		return c.Watcher.State(), err
	}

	st, err := c.Watcher.Check(ctx)
	if err != nil {
		return st, err
	}
	if err := c.Jar.Touch(); err != nil {
		slogx.FromContext(ctx).Warn("cookie jar touch failed", "error", err)
	}
	if c.OnRefresh != nil {
		c.OnRefresh(ctx)
	}
	return st, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	_, err := c.Do(ctx, http.MethodPost, "/api/auth/register", body, nil)
	return err
}

// Logout always ends in the logged-out state on the login page, whatever
// the server says. The server error, if any, is returned afterwards.
func (c *Client) Logout(ctx context.Context) error {
	c.Watcher.Reset()

	_, postErr := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)

	if err := c.Jar.Clear(); err != nil {
		slogx.FromContext(ctx).Warn("cookie jar clear failed", "error", err)
	}
	if _, err := c.Navigator.Navigate(ctx, LoginPath); err != nil {
		slogx.FromContext(ctx).Debug("post-logout check failed", "error", err)
	}
	return postErr
}

// Refresh asks the server to rotate the session cookies.
func (c *Client) Refresh(ctx context.Context) error {
	status, err := c.Do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil)
	if status == http.StatusNoContent {
		return ErrPartialAuth
	}
	return err
}

// Do sends a JSON request and decodes a JSON response into out. Statuses of
// 400 and above come back as *APIError along with the status.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// IsUnauthorized reports whether err is a 401 from the storefront.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
