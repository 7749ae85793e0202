package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// AuthnMiddleware requires a valid "Authorization: Bearer <jwt>" header and
// places the verified claims on the request context.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("jwt verify failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			ctx = slogx.WithUser(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = WithUserID(ctx, c.Subject)
	return context.WithValue(ctx, CtxKeyClaims, c)
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
