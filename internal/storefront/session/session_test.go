package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var shopper = authsdk.User{ID: "user-1", Email: "shopper@example.com"}

// fakeProvider stands in for the identity service. Access tokens in users
// are valid; refresh tokens in rotations rotate to the stored pair.
type fakeProvider struct {
	mu         sync.Mutex
	users      map[string]authsdk.User
	rotations  map[string]*authsdk.TokenResponse
	refreshErr error
	release    chan struct{}

	userCalls    atomic.Int32
	refreshCalls atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:     map[string]authsdk.User{"access-1": shopper},
		rotations: map[string]*authsdk.TokenResponse{},
	}
}

func (p *fakeProvider) GetUser(_ context.Context, accessToken string) (*authsdk.User, error) {
	p.userCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[accessToken]
	if !ok {
		return nil, authsdk.ErrInvalidToken
	}
	return &u, nil
}

func (p *fakeProvider) RefreshSession(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error) {
	p.refreshCalls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	tokens, ok := p.rotations[refreshToken]
	if !ok {
		return nil, authsdk.ErrRefreshTokenNotFound
	}
	p.users[tokens.AccessToken] = tokens.User
	return tokens, nil
}

func (p *fakeProvider) addRotation(from, access, refresh string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotations[from] = &authsdk.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         shopper,
	}
}

func newResolver(p *fakeProvider, opts CoordinatorOptions) *Resolver {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	opts.Metrics = m
	return &Resolver{
		Identity:    p,
		Coordinator: NewCoordinator(p, opts),
		Metrics:     m,
	}
}

func requestWith(creds Credentials) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	if creds.AccessToken != "" {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: creds.AccessToken})
	}
	if creds.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: creds.RefreshToken})
	}
	if creds.AuthState != "" {
		req.AddCookie(&http.Cookie{Name: AuthStateCookie, Value: creds.AuthState})
	}
	return req
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestCookieStore(t *testing.T) {
	t.Run("save", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CookieStore{Secure: true}.Save(rec, &authsdk.TokenResponse{
			AccessToken:  "a",
			RefreshToken: "r",
			ExpiresIn:    3600,
		})

		got := cookiesByName(rec)
		require.Len(t, got, 3)

		access := got[AccessTokenCookie]
		require.Equal(t, "a", access.Value)
		require.Equal(t, 3600, access.MaxAge)
		require.True(t, access.HttpOnly)
		require.True(t, access.Secure)
		require.Equal(t, http.SameSiteLaxMode, access.SameSite)
		require.Equal(t, "/", access.Path)

		refresh := got[RefreshTokenCookie]
		require.Equal(t, 30*24*3600, refresh.MaxAge)
		require.True(t, refresh.HttpOnly)

		state := got[AuthStateCookie]
		require.Equal(t, AuthStateAuthenticated, state.Value)
		require.False(t, state.HttpOnly, "the marker is readable by script")
		require.Equal(t, 30*24*3600, state.MaxAge)
	})

	t.Run("clear", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CookieStore{}.Clear(rec)

		got := cookiesByName(rec)
		require.Len(t, got, 3)
		for name, c := range got {
			require.Empty(t, c.Value, name)
			require.Negative(t, c.MaxAge, name)
			require.False(t, c.Secure, name)
		}
		for _, h := range rec.Header().Values("Set-Cookie") {
			require.Contains(t, h, "Max-Age=0")
		}
	})

	t.Run("read", func(t *testing.T) {
		creds := CookieStore{}.Read(requestWith(Credentials{RefreshToken: "r", AuthState: "authenticated"}))
		require.Empty(t, creds.AccessToken)
		require.Equal(t, "r", creds.RefreshToken)
		require.True(t, creds.Marked())

		require.False(t, Credentials{AuthState: "yes"}.Marked())
	})
}

func TestResolveWithoutMarker(t *testing.T) {
	p := newFakeProvider()
	r := newResolver(p, CoordinatorOptions{})

	rec := httptest.NewRecorder()
	_, err := r.Resolve(rec, requestWith(Credentials{AccessToken: "access-1", RefreshToken: "r"}))
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, p.userCalls.Load(), "no network call without the marker")
	require.Empty(t, rec.Result().Cookies())
}

func TestResolvePartialAuth(t *testing.T) {
	p := newFakeProvider()
	r := newResolver(p, CoordinatorOptions{})

	_, err := r.Resolve(httptest.NewRecorder(), requestWith(Credentials{AuthState: AuthStateAuthenticated}))
	require.ErrorIs(t, err, ErrPartialAuth)
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "partial_auth", Reason(err))
	require.Zero(t, p.userCalls.Load())
}

func TestResolveMemoizedWithinRequest(t *testing.T) {
	p := newFakeProvider()
	r := newResolver(p, CoordinatorOptions{})

	var first, second *Session
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var err error
		first, err = r.Resolve(w, req)
		require.NoError(t, err)
		second, err = r.Resolve(w, req)
		require.NoError(t, err)
	}))

	req := requestWith(Credentials{AccessToken: "access-1", AuthState: AuthStateAuthenticated})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, shopper.ID, first.User.ID)
	require.Equal(t, first.User, second.User)
	require.EqualValues(t, 1, p.userCalls.Load())

	// A new request resolves again.
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.EqualValues(t, 2, p.userCalls.Load())
}

func TestResolveRefreshesExpiredAccessToken(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")
	r := newResolver(p, CoordinatorOptions{})

	rec := httptest.NewRecorder()
	sess, err := r.Resolve(rec, requestWith(Credentials{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		AuthState:    AuthStateAuthenticated,
	}))
	require.NoError(t, err)
	require.True(t, sess.Refreshed)
	require.Equal(t, "access-2", sess.AccessToken)
	require.Equal(t, shopper.ID, sess.User.ID)

	got := cookiesByName(rec)
	require.Equal(t, "access-2", got[AccessTokenCookie].Value)
	require.Equal(t, "refresh-2", got[RefreshTokenCookie].Value)
	require.Equal(t, AuthStateAuthenticated, got[AuthStateCookie].Value)
}

func TestConcurrentResolutionsShareOneRefresh(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")
	p.release = make(chan struct{})
	r := newResolver(p, CoordinatorOptions{})

	const callers = 16
	var (
		wg       sync.WaitGroup
		sessions = make([]*Session, callers)
		errs     = make([]error, callers)
		recs     = make([]*httptest.ResponseRecorder, callers)
	)
	for i := range callers {
		wg.Add(1)
		recs[i] = httptest.NewRecorder()
		go func() {
			defer wg.Done()
			sessions[i], errs[i] = r.Resolve(recs[i], requestWith(Credentials{
				AccessToken:  "expired",
				RefreshToken: "refresh-1",
				AuthState:    AuthStateAuthenticated,
			}))
		}()
	}

	require.Eventually(t, func() bool { return p.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.release)
	wg.Wait()

	require.EqualValues(t, 1, p.refreshCalls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, sessions[0].User, sessions[i].User)
		require.Equal(t, "access-2", sessions[i].AccessToken)
		require.Equal(t, "refresh-2", cookiesByName(recs[i])[RefreshTokenCookie].Value)
	}
}

func TestRefreshFailureClasses(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   error
		wantClear bool
	}{
		{
			name:      "invalid refresh token",
			err:       authsdk.NewOAuth2Error(http.StatusBadRequest, "invalid_grant", "Invalid Refresh Token"),
			wantErr:   ErrDefinitiveRefresh,
			wantClear: true,
		},
		{
			name:      "revoked",
			err:       authsdk.ErrRefreshTokenRevoked,
			wantErr:   ErrDefinitiveRefresh,
			wantClear: true,
		},
		{
			name:    "service unavailable",
			err:     authsdk.NewOAuth2Error(http.StatusServiceUnavailable, "server_error", "service unavailable"),
			wantErr: ErrTransientRefresh,
		},
		{
			name:    "already used",
			err:     authsdk.ErrRefreshTokenAlreadyUsed,
			wantErr: ErrTransientRefresh,
		},
		{
			name:    "network",
			err:     errors.Join(authsdk.ErrTransport, errors.New("connection refused")),
			wantErr: ErrTransientRefresh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.refreshErr = tt.err
			r := newResolver(p, CoordinatorOptions{})

			rec := httptest.NewRecorder()
			_, err := r.Resolve(rec, requestWith(Credentials{
				RefreshToken: "refresh-1",
				AuthState:    AuthStateAuthenticated,
			}))
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, tt.err)

			got := cookiesByName(rec)
			if tt.wantClear {
				require.Len(t, got, 3)
				for _, c := range got {
					require.Negative(t, c.MaxAge)
				}
				return
			}
			require.Empty(t, got, "transient failures keep the cookies")
		})
	}
}

func TestCoordinatorWaitTimeout(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")
	p.release = make(chan struct{})
	c := NewCoordinator(p, CoordinatorOptions{Wait: 10 * time.Millisecond})

	_, err := c.Refresh(context.Background(), "refresh-1")
	require.ErrorIs(t, err, ErrRefreshTimeout)
	require.ErrorIs(t, err, ErrTransientRefresh)
	require.EqualValues(t, 1, p.refreshCalls.Load(), "re-joining never starts a second call")

	// The abandoned call completes and serves the next caller.
	close(p.release)
	require.Eventually(t, func() bool {
		tokens, err := c.Refresh(context.Background(), "refresh-1")
		return err == nil && tokens.RefreshToken == "refresh-2"
	}, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, p.refreshCalls.Load())
}

func TestCoordinatorCallerCancellationDoesNotCancelCall(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")
	p.release = make(chan struct{})
	c := NewCoordinator(p, CoordinatorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, "refresh-1")
		done <- err
	}()

	require.Eventually(t, func() bool { return p.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, ErrTransientRefresh)

	close(p.release)
	require.Eventually(t, func() bool {
		_, ok := c.lookup(cryptox.FingerprintToken("refresh-1"))
		return ok
	}, time.Second, time.Millisecond)
}

func TestCoordinatorGraceExpires(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")

	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := NewCoordinator(p, CoordinatorOptions{Grace: time.Second, Now: clock})

	_, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	_, err = c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, p.refreshCalls.Load(), "second caller is served from the grace window")

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	_, err = c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, p.refreshCalls.Load())
}

func TestResolverRefresh(t *testing.T) {
	p := newFakeProvider()
	p.addRotation("refresh-1", "access-2", "refresh-2")
	r := newResolver(p, CoordinatorOptions{})

	_, err := r.Refresh(httptest.NewRecorder(), requestWith(Credentials{AuthState: AuthStateAuthenticated}))
	require.ErrorIs(t, err, ErrPartialAuth)

	_, err = r.Refresh(httptest.NewRecorder(), requestWith(Credentials{}))
	require.ErrorIs(t, err, ErrUnauthorized)

	rec := httptest.NewRecorder()
	tokens, err := r.Refresh(rec, requestWith(Credentials{RefreshToken: "refresh-1"}))
	require.NoError(t, err)
	require.Equal(t, "access-2", tokens.AccessToken)
	require.Len(t, cookiesByName(rec), 3)
}
