package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// IdentityProvider derives the user behind an access token.
type IdentityProvider interface {
	GetUser(ctx context.Context, accessToken string) (*authsdk.User, error)
}

// Session is the resolved identity for one request. It is never stored.
type Session struct {
	User        authsdk.User
	AccessToken string

	// Refreshed is set when resolution had to rotate the tokens.
	Refreshed bool
}

// Resolver turns request cookies into a Session, refreshing through the
// Coordinator when the access token no longer works.
type Resolver struct {
	Identity    IdentityProvider
	Coordinator *Coordinator
	Cookies     CookieStore
	Metrics     *telemetry.Metrics
}

// Resolve returns the caller's session or one of ErrUnauthorized,
// ErrPartialAuth, ErrTransientRefresh or ErrDefinitiveRefresh. It may write
// cookies to w. Inside Middleware the first result is reused for the rest of
// the request.
func (r *Resolver) Resolve(w http.ResponseWriter, req *http.Request) (*Session, error) {
	if m, ok := req.Context().Value(memoKey{}).(*memo); ok {
		m.once.Do(func() { m.sess, m.err = r.resolve(w, req) })
		return m.sess, m.err
	}
	return r.resolve(w, req)
}

func (r *Resolver) resolve(w http.ResponseWriter, req *http.Request) (*Session, error) {
	ctx, span := telemetry.StartSpan(req.Context(), "session.Resolve")

	sess, result, err := r.resolveCredentials(ctx, w, r.Cookies.Read(req))

	span.SetAttributes(attribute.String("session.result", result))
	telemetry.EndSpan(span, err)
	r.Metrics.Resolution(result)

	if err != nil {
		slogx.FromContext(ctx).DebugContext(ctx, "session not resolved", "result", result, "error", err)
	}
	return sess, err
}

func (r *Resolver) resolveCredentials(ctx context.Context, w http.ResponseWriter, creds Credentials) (*Session, string, error) {
	if !creds.Marked() {
		return nil, "anonymous", ErrUnauthorized
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, "partial_auth", ErrPartialAuth
	}

	if creds.AccessToken != "" {
		user, err := r.Identity.GetUser(ctx, creds.AccessToken)
		if err == nil {
			return &Session{User: *user, AccessToken: creds.AccessToken}, "access_token", nil
		}
		slogx.FromContext(ctx).DebugContext(ctx, "access token rejected", "error", err)
	}

	if creds.RefreshToken == "" {
		return nil, "unauthenticated", ErrUnauthorized
	}

	tokens, err := r.refresh(ctx, w, creds.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrDefinitiveRefresh) {
			return nil, "refresh_definitive", err
		}
		return nil, "refresh_transient", err
	}

	user, err := r.Identity.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, "unauthenticated", fmt.Errorf("%w: identity after refresh: %w", ErrUnauthorized, err)
	}
	return &Session{User: *user, AccessToken: tokens.AccessToken, Refreshed: true}, "refreshed", nil
}

// Refresh rotates the request's refresh token and writes the new cookies.
// A request with no refresh token gets ErrPartialAuth when the marker is set
// and ErrUnauthorized otherwise.
func (r *Resolver) Refresh(w http.ResponseWriter, req *http.Request) (*authsdk.TokenResponse, error) {
	creds := r.Cookies.Read(req)
	if creds.RefreshToken == "" {
		if creds.Marked() {
			return nil, ErrPartialAuth
		}
		return nil, ErrUnauthorized
	}
	return r.refresh(req.Context(), w, creds.RefreshToken)
}

// refresh is the only path that writes rotated cookies or clears them after
// a failed rotation.
func (r *Resolver) refresh(ctx context.Context, w http.ResponseWriter, refreshToken string) (*authsdk.TokenResponse, error) {
	tokens, err := r.Coordinator.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrDefinitiveRefresh) {
			r.Cookies.Clear(w)
		}
		return nil, err
	}
	r.Cookies.Save(w, tokens)
	return tokens, nil
}

type memoKey struct{}

type memo struct {
	once sync.Once
	sess *Session
	err  error
}

// Middleware scopes a resolution cache to each request so handlers and
// helpers can call Resolve freely.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), memoKey{}, &memo{})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
