package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/internal/identity/store"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	TokenService *service.TokenService
	UserService  *service.UserService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		middlewares:  []httpx.Middleware{slogx.HTTPMiddleware(logger)},
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	// The storefront refreshes for every customer from one address, so the
	// token endpoint is keyed per credential rather than per IP alone.
	tokenKey := httpx.CompositeKeyExtractor("|",
		httpx.IPKeyExtractor,
		httpx.FormFieldKeyExtractor("email"),
		httpx.FormFieldKeyExtractor("refresh_token"),
	)
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(&TokenHandler{TokenService: r.TokenService},
			httpx.RateLimitMiddleware(httpx.AuthLimit, tokenKey),
		),
	)
	r.Mux.Handle("POST /v1/revoke",
		httpx.Chain(&RevokeHandler{TokenService: r.TokenService},
			httpx.RateLimitMiddleware(httpx.AuthLimit, httpx.CompositeKeyExtractor("|",
				httpx.IPKeyExtractor,
				httpx.FormFieldKeyExtractor("token"),
			)),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserHandlers{UserService: r.UserService, TokenService: r.TokenService}

	r.Mux.Handle("POST /v1/signup",
		httpx.Chain(http.HandlerFunc(h.SignUp), httpx.RateLimitByIP(httpx.AuthLimit)),
	)
	r.Mux.Handle("POST /v1/verify",
		httpx.Chain(http.HandlerFunc(h.Verify), httpx.RateLimitByIP(httpx.AuthLimit)),
	)

	authn := httpx.AuthnMiddleware(r.verifier)
	r.Mux.Handle("GET /v1/user",
		httpx.Chain(http.HandlerFunc(h.GetUser), authn, httpx.RateLimitByUser(httpx.PublicLimit)),
	)
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(h.Logout), authn),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json", JWKSHandler(r.keys))
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store, r.keys))
}
