package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

type UserHandlers struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// SignUp godoc
//
//	@Summary		Register a user
//	@Description	Creates a user with an email and password. When email confirmation is required a 6 digit code is sent and sign-in is refused until it is redeemed.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.SignUpRequest	true	"email and password"
//	@Success		201		{object}	authsdk.SignUpResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		409		{object}	authsdk.ErrorResponse	"email_exists"
//	@Failure		422		{object}	authsdk.ErrorResponse	"weak_password"
//	@Router			/v1/signup [post].
func (h *UserHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.SignUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	u, confirmationRequired, err := h.UserService.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			authsdk.NewOAuth2Error(
				http.StatusBadRequest,
				authsdk.ErrorCodeInvalidRequest,
				"Unable to validate email address: invalid format",
			).WriteError(w)
		case errors.Is(err, service.ErrWeakPassword):
			authsdk.ErrWeakPassword.WriteError(w)
		case errors.Is(err, service.ErrEmailExists):
			authsdk.ErrEmailExists.WriteError(w)
		default:
			log.Error("sign-up failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	log.Info("user registered", "user_id", u.ID, "confirmation_required", confirmationRequired)
	httpx.WriteJSON(w, http.StatusCreated, authsdk.SignUpResponse{
		User:                 toUser(u),
		ConfirmationRequired: confirmationRequired,
	})
}

// Verify godoc
//
//	@Summary		Confirm an email address
//	@Description	Redeems the 6 digit confirmation code sent at sign-up.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyRequest	true	"email and code"
//	@Success		200		{object}	map[string]authsdk.User	"user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_code"
//	@Router			/v1/verify [post].
func (h *UserHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	u, err := h.UserService.Verify(ctx, req.Email, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			authsdk.ErrInvalidCode.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Error("verify failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]authsdk.User{"user": toUser(u)})
}

// GetUser godoc
//
//	@Summary		Get the current user
//	@Description	Returns the user the bearer access token was issued to.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/user [get].
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	u, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		slogx.FromContext(ctx).Warn("failed to load user", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUser(u))
}

// Logout godoc
//
//	@Summary		Sign out
//	@Description	Revokes every refresh token of the access token's session.
//	@Tags			Users
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/logout [post].
func (h *UserHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if claims.SID != "" {
		if err := h.TokenService.SignOut(ctx, claims.SID); err != nil {
			slogx.FromContext(ctx).Error("sign-out failed", "sid", claims.SID, "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
