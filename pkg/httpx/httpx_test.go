package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, httpx.DecodeJSON(req, &dst))
	require.Equal(t, "a@b.c", dst.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}{}`))
	require.Error(t, httpx.DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	require.Error(t, httpx.DecodeJSON(req, &dst))
}

func TestWriteJSONSetsNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteError(rec, http.StatusForbidden, "Forbidden")

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())
}

func TestAuthnMiddleware(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "test"})
	require.NoError(t, err)

	var seen jwtx.Claims
	h := httpx.AuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, c.Subject, httpx.UserIDFromContext(r.Context()))
		seen = c
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := km.GetSigner().Sign(jwtx.NewAccessClaims("user-9", "sid", "u@x.y", nil, time.Minute, "test", nil, time.Now()))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "user-9", seen.Subject)
	})
}
