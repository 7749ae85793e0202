package httpx

import (
	"context"

	"github.com/aussiebroadwan/storefront/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
)

// WithUserID stores the authenticated user's id for rate limiting and logs.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}

// UserIDFromContext returns the id stored by WithUserID or the bearer
// middleware, or "" when the request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUserID).(string)
	return v
}

// ClaimsFromContext returns the verified access-token claims.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}
