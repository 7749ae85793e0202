package storefront_test

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/authstate"
	"github.com/stretchr/testify/require"
)

// TestSignUpBrowseLogout walks one shopper through the guard:
// 1. Anonymous visit to a protected page is sent to login
// 2. Sign up and sign in
// 3. Protected pages render, the login page bounces to the catalogue
// 4. Logout ends signed out and protected pages redirect again
func TestSignUpBrowseLogout(t *testing.T) {
	s := startStack(t, stackOptions{})
	c := s.newShopper(t, filepath.Join(t.TempDir(), "jar.json"))
	ctx := context.Background()

	status, loc := fetchPage(t, c, "/cart")
	require.Equal(t, http.StatusFound, status)
	require.Equal(t, "/auth/login?redirect=/cart", loc)

	signUp(t, c, "walker@example.com")

	status, _ = fetchPage(t, c, "/cart")
	require.Equal(t, http.StatusOK, status)

	status, loc = fetchPage(t, c, "/auth/login")
	require.Equal(t, http.StatusFound, status)
	require.Equal(t, "/products", loc)

	require.NoError(t, c.Logout(ctx))
	assertSignedOut(t, c.Watcher.State())
	require.Equal(t, authstate.LoginPath, c.Navigator.Current())

	status, loc = fetchPage(t, c, "/orders")
	require.Equal(t, http.StatusFound, status)
	require.Equal(t, "/auth/login?redirect=/orders", loc)
}

func TestTabsShareOneLogin(t *testing.T) {
	s := startStack(t, stackOptions{})
	jarPath := filepath.Join(t.TempDir(), "jar.json")

	tabA := s.newShopper(t, jarPath)
	tabB := s.newShopper(t, jarPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tabB.Watcher.Run(ctx, authstate.StorageTrigger{Jar: tabB.Jar}) }()
	require.Eventually(t, func() bool { return !tabB.Watcher.State().IsLoading }, 5*time.Second, 20*time.Millisecond)

	signUp(t, tabA, "tabs@example.com")
	require.Eventually(t, func() bool {
		st := tabB.Watcher.State()
		return st.User != nil && st.User.Email == "tabs@example.com"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, tabA.Logout(context.Background()))
	require.Eventually(t, func() bool {
		return !tabB.Watcher.State().IsAuthenticated
	}, 5*time.Second, 20*time.Millisecond)
}

// TestExpiredAccessTokenIsRefreshed checks that a shopper whose access token
// has lapsed keeps their session and ends up with rotated cookies.
func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	s := startStack(t, stackOptions{accessTTL: time.Second})
	c := s.newShopper(t, filepath.Join(t.TempDir(), "jar.json"))

	signUp(t, c, "lapsed@example.com")
	oldRefresh := c.Jar.Value("sb-refresh-token")
	require.NotEmpty(t, oldRefresh)

	time.Sleep(1500 * time.Millisecond)

	st, err := c.Watcher.Check(context.Background())
	require.NoError(t, err)
	assertSignedIn(t, st, "lapsed@example.com")

	newRefresh := c.Jar.Value("sb-refresh-token")
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, oldRefresh, newRefresh)
	require.NotEmpty(t, c.Jar.Value("sb-access-token"))
}

// TestLogoutAfterAccessTokenLapsed checks that logging out with only the
// refresh cookie left still ends the session at the identity service.
func TestLogoutAfterAccessTokenLapsed(t *testing.T) {
	s := startStack(t, stackOptions{accessTTL: time.Second})
	c := s.newShopper(t, filepath.Join(t.TempDir(), "jar.json"))
	ctx := context.Background()

	signUp(t, c, "leaving@example.com")
	oldRefresh := c.Jar.Value("sb-refresh-token")
	require.NotEmpty(t, oldRefresh)

	time.Sleep(1500 * time.Millisecond)
	require.Empty(t, c.Jar.Value("sb-access-token"))

	require.NoError(t, c.Logout(ctx))
	assertSignedOut(t, c.Watcher.State())

	_, err := authsdk.NewSDKClient(s.identityURL).RefreshSession(ctx, oldRefresh)
	require.ErrorIs(t, err, authsdk.ErrRefreshTokenRevoked)
}

func TestPartialAuthNeedsFreshLogin(t *testing.T) {
	s := startStack(t, stackOptions{})
	c := s.newShopper(t, filepath.Join(t.TempDir(), "jar.json"))
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "partial@example.com", shopperPassword))

	u, err := url.Parse(s.storefrontURL)
	require.NoError(t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: authstate.MarkerCookie, Value: authstate.MarkerValue, MaxAge: 3600}})

	st, err := c.Watcher.Check(ctx)
	require.NoError(t, err)
	require.True(t, st.IsAuthenticated)
	require.True(t, st.PartialAuth)
	require.Nil(t, st.User)
	require.ErrorIs(t, c.Refresh(ctx), authstate.ErrPartialAuth)

	st, err = c.Login(ctx, "partial@example.com", shopperPassword)
	require.NoError(t, err)
	assertSignedIn(t, st, "partial@example.com")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := startStack(t, stackOptions{})
	c := s.newShopper(t, filepath.Join(t.TempDir(), "jar.json"))
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "careful@example.com", shopperPassword))

	_, err := c.Login(ctx, "careful@example.com", "not-the-password")
	require.True(t, authstate.IsUnauthorized(err))

	var apiErr *authstate.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid email or password", apiErr.Message)
	require.False(t, c.Jar.Marker())
}
