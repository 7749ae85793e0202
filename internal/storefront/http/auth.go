package http

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// AuthProvider is the part of the identity client the auth routes use.
// *authsdk.SDKClient satisfies it.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*authsdk.TokenResponse, error)
	SignUp(ctx context.Context, email, password string) (*authsdk.SignUpResponse, error)
	SignOut(ctx context.Context, accessToken string) error
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, accessToken string) (*authsdk.User, error)
	GetReadiness(ctx context.Context) (*authsdk.HealthResponse, error)
}

// SessionResolver is satisfied by *session.Resolver.
type SessionResolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

// PartialAuthHeader marks a 204 that means "marker without credentials".
const PartialAuthHeader = "X-Auth-Status"

const minPasswordLength = 6

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User authsdk.User `json:"user"`
}

type registerResponse struct {
	User                 authsdk.User `json:"user"`
	ConfirmationRequired bool         `json:"confirmationRequired"`
	Message              string       `json:"message,omitempty"`
}

type statusResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	User    *authsdk.User `json:"user,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeSessionError answers a failed resolution: 204 for partial auth and
// 401 otherwise.
func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrPartialAuth) {
		writePartialAuth(w)
		return
	}
	httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{
		Error:  "Unauthorized",
		Reason: session.Reason(err),
	})
}

func writePartialAuth(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set(PartialAuthHeader, "partial_auth")
	w.WriteHeader(http.StatusNoContent)
}

// AuthHandlers serve the cookie-session auth routes.
type AuthHandlers struct {
	Identity AuthProvider
	Sessions *session.Resolver
	Cookies  session.CookieStore
	Events   *EventHub
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchanges email and password with the identity provider and sets the three session cookies.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		credentialsRequest	true	"Credentials"
//	@Success		200		{object}	userResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		401		{object}	errorResponse
//	@Router			/api/auth/login [post].
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	tokens, err := h.Identity.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		var oe *authsdk.OAuth2Error
		switch {
		case errors.Is(err, authsdk.ErrInvalidGrant):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, authsdk.ErrEmailNotConfirmed):
			httpx.WriteError(w, http.StatusUnauthorized, "Please verify your email address before logging in")
		case errors.As(err, &oe) && oe.StatusCode < http.StatusInternalServerError:
			httpx.WriteError(w, http.StatusUnauthorized, oe.Description)
		default:
			slogx.FromContext(ctx).Error("login failed", "error", err)
			httpx.WriteError(w, http.StatusBadGateway, "Authentication service unavailable")
		}
		return
	}

	h.Cookies.Save(w, tokens)
	h.Events.Publish(tokens.User.ID, EventSignedIn)

	slogx.FromContext(ctx).Info("user logged in", "user_id", tokens.User.ID)
	httpx.WriteJSON(w, http.StatusOK, userResponse{User: tokens.User})
}

// Register godoc
//
//	@Summary		Register
//	@Description	Creates an account with the identity provider. No session cookies are set.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		credentialsRequest	true	"Credentials"
//	@Success		201		{object}	registerResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		409		{object}	errorResponse
//	@Router			/api/auth/register [post].
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	out, err := h.Identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authsdk.ErrEmailExists):
			httpx.WriteError(w, http.StatusConflict, "An account with this email already exists")
		case errors.Is(err, authsdk.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		default:
			slogx.FromContext(ctx).Error("registration failed", "error", err)
			httpx.WriteError(w, http.StatusBadGateway, "Authentication service unavailable")
		}
		return
	}

	resp := registerResponse{User: out.User, ConfirmationRequired: out.ConfirmationRequired}
	if out.ConfirmationRequired {
		resp.Message = "Please check your email to confirm your account"
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Revokes the session at the identity provider by refresh token, or by access token when no refresh token is present, and always clears the session cookies.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	statusResponse
//	@Router			/api/auth/logout [post].
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creds := h.Cookies.Read(r)
	log := slogx.FromContext(ctx)

	if creds.AccessToken != "" {
		if user, err := h.Identity.GetUser(ctx, creds.AccessToken); err == nil {
			h.Events.Publish(user.ID, EventSignedOut)
		}
	}

	// Revoking by refresh token still works once the access token has lapsed.
	switch {
	case creds.RefreshToken != "":
		if err := h.Identity.RevokeRefreshToken(ctx, creds.RefreshToken); err != nil {
			log.Warn("provider revoke failed", "error", err)
		}
	case creds.AccessToken != "":
		if err := h.Identity.SignOut(ctx, creds.AccessToken); err != nil {
			log.Warn("provider sign-out failed", "error", err)
		}
	}

	h.Cookies.Clear(w)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "Logged out successfully"})
}

// Refresh godoc
//
//	@Summary		Refresh the session
//	@Description	Rotates the refresh token cookie. Concurrent refreshes of the same token share one provider call.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	statusResponse
//	@Success		204	"Marker present without credentials"
//	@Failure		401	{object}	errorResponse
//	@Router			/api/auth/refresh [post].
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.Sessions.Refresh(w, r)
	switch {
	case errors.Is(err, session.ErrPartialAuth):
		writePartialAuth(w)
		return
	case errors.Is(err, session.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "No refresh token available")
		return
	case err != nil:
		httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{
			Error:  "Failed to refresh session",
			Reason: session.Reason(err),
		})
		return
	}

	h.Events.Publish(tokens.User.ID, EventRefreshed)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Message: "Session refreshed successfully",
		User:    &tokens.User,
	})
}

// Session godoc
//
//	@Summary		Current session
//	@Description	Resolves the session from cookies, refreshing if the access token has expired.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	userResponse
//	@Success		204	"Marker present without credentials"
//	@Failure		401	{object}	errorResponse
//	@Router			/api/auth/session [get].
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Resolve(w, r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse{User: sess.User})
}
