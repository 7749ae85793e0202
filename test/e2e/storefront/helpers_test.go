package storefront_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	identityapp "github.com/aussiebroadwan/storefront/internal/identity/app"
	storefrontapp "github.com/aussiebroadwan/storefront/internal/storefront/app"
	"github.com/aussiebroadwan/storefront/pkg/authstate"
	"github.com/stretchr/testify/require"
)

/*
 * End-to-end helpers: an identity service and a storefront wired together
 * over real listeners, driven through the same client the CLI uses.
 */

const shopperPassword = "hunter22"

type stack struct {
	identityURL   string
	storefrontURL string
}

type stackOptions struct {
	accessTTL time.Duration
}

// startStack runs both services in-process on loopback listeners.
func startStack(t *testing.T, opts stackOptions) stack {
	t.Helper()

	icfg := identityapp.LoadConfig()
	icfg.DatabaseFile = ":memory:"
	icfg.PepperFile = filepath.Join(t.TempDir(), "pepper")
	icfg.LogLevel = "error"
	if opts.accessTTL > 0 {
		icfg.AccessTTL = opts.accessTTL
	}
	identity, err := identityapp.New(icfg)
	require.NoError(t, err)
	identitySrv := httptest.NewServer(identity.Handler())
	t.Cleanup(identitySrv.Close)

	// The checkout flow calls the storefront's own API, so its address has
	// to be known before the app is built.
	storefrontSrv := httptest.NewUnstartedServer(nil)
	scfg := storefrontapp.LoadConfig()
	scfg.IdentityURL = identitySrv.URL
	scfg.InternalAPIURL = "http://" + storefrontSrv.Listener.Addr().String()
	scfg.DatabaseDriver = "sqlite"
	scfg.DatabaseURL = ":memory:"
	scfg.LogLevel = "error"

	storefront, err := storefrontapp.New(scfg)
	require.NoError(t, err)
	storefrontSrv.Config.Handler = storefront.Handler()
	storefrontSrv.Start()
	t.Cleanup(storefrontSrv.Close)

	return stack{identityURL: identitySrv.URL, storefrontURL: storefrontSrv.URL}
}

// newShopper opens a client on the jar at jarPath. Clients given the same
// path behave like tabs of one browser.
func (s stack) newShopper(t *testing.T, jarPath string) *authstate.Client {
	t.Helper()
	jar, err := authstate.OpenFileJar(jarPath)
	require.NoError(t, err)
	return authstate.NewClient(s.storefrontURL, jar)
}

// signUp registers email and signs the client in.
func signUp(t *testing.T, c *authstate.Client, email string) authstate.State {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, email, shopperPassword))
	st, err := c.Login(ctx, email, shopperPassword)
	require.NoError(t, err)
	assertSignedIn(t, st, email)
	return st
}

func assertSignedIn(t *testing.T, st authstate.State, email string) {
	t.Helper()
	require.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	require.Equal(t, email, st.User.Email)
	require.False(t, st.PartialAuth)
}

func assertSignedOut(t *testing.T, st authstate.State) {
	t.Helper()
	require.False(t, st.IsAuthenticated)
	require.Nil(t, st.User)
}

// fetchPage requests a page without following redirects and returns the
// status and Location.
func fetchPage(t *testing.T, c *authstate.Client, path string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	require.NoError(t, err)

	pages := &http.Client{
		Jar: c.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := pages.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Location")
}
