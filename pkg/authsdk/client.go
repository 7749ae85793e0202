package authsdk

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrTransport wraps network level failures talking to the identity service.
var ErrTransport = errors.New("authsdk: transport error")

// DefaultTimeout bounds every call made through NewSDKClient's HTTP client.
const DefaultTimeout = 10 * time.Second

// SDKClient talks to the identity service on behalf of the storefront and
// the CLI. It holds no session state of its own.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the identity service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}
