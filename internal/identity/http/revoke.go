package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// RevokeHandler serves POST /v1/revoke in the manner of RFC 7009. Only
// refresh tokens are revoked; access tokens expire on their own. Unknown or
// invalid tokens still get 200 to prevent token scanning.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Token Revocation Endpoint
//	@Description	Revokes the session behind a refresh token. Needs no access token.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The refresh token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Revoked, or was already invalid"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

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

	token := r.PostForm.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if hint := r.PostForm.Get("token_type_hint"); hint == "" || hint == "refresh_token" {
		if err := h.TokenService.RevokeRefreshToken(ctx, token); err != nil {
			slogx.FromContext(ctx).Warn("revoke refresh failed", "err", err)
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
