package session

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
)

const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
	AuthStateCookie    = "sb-auth-state"

	// AuthStateAuthenticated is the only marker value treated as logged in.
	AuthStateAuthenticated = "authenticated"

	// RefreshTokenLifetime outlives any single access token so a customer
	// who comes back after a few idle days is still signed in. The marker
	// cookie shares it so the UI signal and the refresh capability expire
	// together.
	RefreshTokenLifetime = 30 * 24 * time.Hour
)

// Credentials is a snapshot of the three cookies on a request.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	AuthState    string
}

// Marked reports whether the liveness marker says the customer is logged in.
func (c Credentials) Marked() bool {
	return c.AuthState == AuthStateAuthenticated
}

// CookieStore is the credential store. It has no state of its own: every
// write is a Set-Cookie header on the response.
type CookieStore struct {
	// Secure marks every cookie Secure. Set in production.
	Secure bool
}

// Read returns the credentials carried by r. Missing cookies are empty.
func (s CookieStore) Read(r *http.Request) Credentials {
	return Credentials{
		AccessToken:  cookieValue(r, AccessTokenCookie),
		RefreshToken: cookieValue(r, RefreshTokenCookie),
		AuthState:    cookieValue(r, AuthStateCookie),
	}
}

// SetAccessToken writes the access token with the provider-supplied lifetime.
func (s CookieStore) SetAccessToken(w http.ResponseWriter, token string, expiresIn int) {
	s.set(w, AccessTokenCookie, token, expiresIn, true)
}

func (s CookieStore) SetRefreshToken(w http.ResponseWriter, token string) {
	s.set(w, RefreshTokenCookie, token, int(RefreshTokenLifetime.Seconds()), true)
}

// SetAuthState writes the script-readable liveness marker.
func (s CookieStore) SetAuthState(w http.ResponseWriter) {
	s.set(w, AuthStateCookie, AuthStateAuthenticated, int(RefreshTokenLifetime.Seconds()), false)
}

// Save writes all three cookies from a login or refresh response.
func (s CookieStore) Save(w http.ResponseWriter, tokens *authsdk.TokenResponse) {
	s.SetAccessToken(w, tokens.AccessToken, tokens.ExpiresIn)
	s.SetRefreshToken(w, tokens.RefreshToken)
	s.SetAuthState(w)
}

// Clear expires all three cookies, whatever the request carried.
func (s CookieStore) Clear(w http.ResponseWriter) {
	s.set(w, AccessTokenCookie, "", -1, true)
	s.set(w, RefreshTokenCookie, "", -1, true)
	s.set(w, AuthStateCookie, "", -1, false)
}

func (s CookieStore) set(w http.ResponseWriter, name, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
