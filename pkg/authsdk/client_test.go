package authsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestSignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))

		if r.PostForm.Get("password") != "hunter22" {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
			AccessToken:  "at",
			RefreshToken: "rt",
			TokenType:    "bearer",
			ExpiresIn:    3600,
			User:         authsdk.User{ID: "u1", Email: r.PostForm.Get("email")},
		})
	}))
	defer srv.Close()

	c := authsdk.NewSDKClient(srv.URL + "/")

	tok, err := c.SignInWithPassword(context.Background(), "a@b.c", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "at", tok.AccessToken)
	require.Equal(t, 3600, tok.ExpiresIn)
	require.Equal(t, "a@b.c", tok.User.Email)

	_, err = c.SignInWithPassword(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusBadRequest, oe.StatusCode)
}

func TestRefreshSessionErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		authsdk.ErrRefreshTokenAlreadyUsed.WriteError(w)
	}))
	defer srv.Close()

	_, err := authsdk.NewSDKClient(srv.URL).RefreshSession(context.Background(), "old")
	require.ErrorIs(t, err, authsdk.ErrRefreshTokenAlreadyUsed)
	require.Equal(t, authsdk.FailureReuse, authsdk.ClassifyRefreshError(err))
}

func TestRevokeRefreshTokenSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/revoke", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "rt-1", r.PostForm.Get("token"))
		require.Equal(t, "refresh_token", r.PostForm.Get("token_type_hint"))
		httpx.WriteJSON(w, http.StatusOK, struct{}{})
	}))
	defer srv.Close()

	require.NoError(t, authsdk.NewSDKClient(srv.URL).RevokeRefreshToken(context.Background(), "rt-1"))
}

func TestNonJSONErrorBecomesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := authsdk.NewSDKClient(srv.URL).GetUser(context.Background(), "at")
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusBadGateway, oe.StatusCode)
	require.Equal(t, authsdk.FailureTransient, authsdk.ClassifyRefreshError(err))
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := authsdk.NewSDKClient(url).RefreshSession(context.Background(), "rt")
	require.ErrorIs(t, err, authsdk.ErrTransport)
	require.Equal(t, authsdk.FailureTransient, authsdk.ClassifyRefreshError(err))
}

func TestGetUserAndSignOutSendBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/user":
			httpx.WriteJSON(w, http.StatusOK, authsdk.User{ID: "u1", Email: "a@b.c"})
		case "/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := authsdk.NewSDKClient(srv.URL)

	user, err := c.GetUser(context.Background(), "at-1")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)

	require.NoError(t, c.SignOut(context.Background(), "at-1"))
}

func TestSignUpAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/signup":
			var req authsdk.SignUpRequest
			require.NoError(t, httpx.DecodeJSON(r, &req))
			httpx.WriteJSON(w, http.StatusCreated, authsdk.SignUpResponse{
				User:                 authsdk.User{ID: "u2", Email: req.Email},
				ConfirmationRequired: true,
			})
		case "/v1/verify":
			var req authsdk.VerifyRequest
			require.NoError(t, httpx.DecodeJSON(r, &req))
			if req.Code != "123456" {
				authsdk.ErrInvalidCode.WriteError(w)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": authsdk.User{ID: "u2", Email: req.Email}})
		}
	}))
	defer srv.Close()

	c := authsdk.NewSDKClient(srv.URL)

	out, err := c.SignUp(context.Background(), "new@b.c", "secret1")
	require.NoError(t, err)
	require.True(t, out.ConfirmationRequired)
	require.Equal(t, "new@b.c", out.User.Email)

	_, err = c.VerifyEmail(context.Background(), "new@b.c", "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	u, err := c.VerifyEmail(context.Background(), "new@b.c", "123456")
	require.NoError(t, err)
	require.Equal(t, "u2", u.ID)
}
