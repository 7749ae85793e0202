package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// TokenHandler serves POST /v1/token.
// Accepts application/x-www-form-urlencoded.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Token Endpoint
//	@Description	Issues an access and refresh token pair for the password grant, and rotates the pair for the refresh_token grant.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(password, refresh_token)
//	@Param			email			formData	string					false	"Email (password grant)"
//	@Param			password		formData	string					false	"Password (password grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, expires_at, user"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.NewOAuth2Error(
			http.StatusBadRequest,
			authsdk.ErrorCodeInvalidRequest,
			"Content-Type must be application/x-www-form-urlencoded",
		).WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		h.handlePasswordGrant(w, r, r.PostForm)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.PostForm)
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handlePasswordGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := strings.TrimSpace(form.Get("email"))
	password := form.Get("password")
	if email == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.SignInWithPassword(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			authsdk.ErrInvalidGrant.WriteError(w)
		case errors.Is(err, service.ErrEmailNotConfirmed):
			authsdk.ErrEmailNotConfirmed.WriteError(w)
		default:
			log.Error("password grant failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	refresh := form.Get("refresh_token")
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, refresh)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshMalformed):
			authsdk.ErrBadRefreshToken.WriteError(w)
		case errors.Is(err, service.ErrRefreshNotFound):
			authsdk.ErrRefreshTokenNotFound.WriteError(w)
		case errors.Is(err, service.ErrRefreshExpired):
			authsdk.ErrRefreshTokenExpired.WriteError(w)
		case errors.Is(err, service.ErrRefreshRevoked):
			authsdk.ErrRefreshTokenRevoked.WriteError(w)
		case errors.Is(err, service.ErrRefreshAlreadyUsed):
			log.Warn("refresh token replayed")
			authsdk.ErrRefreshTokenAlreadyUsed.WriteError(w)
		default:
			log.Error("refresh grant failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

func toTokenResponse(pair *domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		ExpiresAt:    pair.ExpiresAt.Unix(),
		User:         toUser(pair.User),
	}
}

func toUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:               u.ID,
		Email:            u.Email,
		CreatedAt:        u.CreatedAt,
		EmailConfirmedAt: u.EmailConfirmedAt,
	}
}
