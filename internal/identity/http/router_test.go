package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	identityhttp "github.com/aussiebroadwan/storefront/internal/identity/http"
	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *authsdk.SDKClient) {
	t.Helper()
	cryptox.SetPepper("http-test-pepper")

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "test", NumKeys: 2})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := identityhttp.NewRouter(km.KeySet, km.Verifier, "test", st, logger)
	router.TokenService = &service.TokenService{
		KeyManager: km,
		Store:      st,
		Issuer:     "test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
	router.UserService = &service.UserService{Store: st, Issuer: "test"}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, authsdk.NewSDKClient(srv.URL)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)

	signup, err := client.SignUp(ctx, "buyer@example.com", "hunter22")
	require.NoError(t, err)
	require.False(t, signup.ConfirmationRequired)
	require.Equal(t, "buyer@example.com", signup.User.Email)

	login, err := client.SignInWithPassword(ctx, "buyer@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, 60, login.ExpiresIn)
	require.Equal(t, signup.User.ID, login.User.ID)

	user, err := client.GetUser(ctx, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, signup.User.ID, user.ID)

	rotated, err := client.RefreshSession(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	_, err = client.RefreshSession(ctx, login.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrRefreshTokenAlreadyUsed)
	require.Equal(t, authsdk.FailureReuse, authsdk.ClassifyRefreshError(err))

	require.NoError(t, client.SignOut(ctx, rotated.AccessToken))

	_, err = client.RefreshSession(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrRefreshTokenRevoked)
	require.Equal(t, authsdk.FailureDefinitive, authsdk.ClassifyRefreshError(err))
}

func TestRevokeEndsSessionWithoutAccessToken(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)

	_, err := client.SignUp(ctx, "revoke@example.com", "hunter22")
	require.NoError(t, err)
	login, err := client.SignInWithPassword(ctx, "revoke@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, client.RevokeRefreshToken(ctx, login.RefreshToken))

	_, err = client.RefreshSession(ctx, login.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrRefreshTokenRevoked)

	t.Run("idempotent and silent for unknown tokens", func(t *testing.T) {
		require.NoError(t, client.RevokeRefreshToken(ctx, login.RefreshToken))
		require.NoError(t, client.RevokeRefreshToken(ctx, "garbage"))
	})

	t.Run("token is required", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/v1/revoke", url.Values{})
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTokenEndpointErrors(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)

	_, err := client.SignUp(ctx, "err@example.com", "hunter22")
	require.NoError(t, err)

	t.Run("bad password", func(t *testing.T) {
		_, err := client.SignInWithPassword(ctx, "err@example.com", "wrong-pass")
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("malformed refresh token", func(t *testing.T) {
		_, err := client.RefreshSession(ctx, "garbage")
		require.ErrorIs(t, err, authsdk.ErrBadRefreshToken)
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		_, err = client.RefreshSession(ctx, tok)
		require.ErrorIs(t, err, authsdk.ErrRefreshTokenNotFound)
	})

	t.Run("unsupported grant", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/v1/token", url.Values{"grant_type": {"client_credentials"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body authsdk.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, authsdk.ErrorCodeUnsupportedGrantType, body.Error)
	})

	t.Run("json body rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/v1/token", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSignUpErrors(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)

	_, err := client.SignUp(ctx, "short@example.com", "12345")
	require.ErrorIs(t, err, authsdk.ErrWeakPassword)

	_, err = client.SignUp(ctx, "dupe@example.com", "hunter22")
	require.NoError(t, err)
	_, err = client.SignUp(ctx, "dupe@example.com", "hunter22")
	require.ErrorIs(t, err, authsdk.ErrEmailExists)
}

func TestUserRequiresBearer(t *testing.T) {
	srv, client := newServer(t)

	resp, err := http.Get(srv.URL + "/v1/user")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")

	_, err = client.GetUser(context.Background(), "not.a.jwt")
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusUnauthorized, oe.StatusCode)
}

func TestSystemEndpoints(t *testing.T) {
	srv, client := newServer(t)
	ctx := context.Background()

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks["database"])

	resp, err := http.Get(srv.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var jwks jwtx.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 2)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
}
