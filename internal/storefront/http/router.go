package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/guard"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/storefront/api/storefront" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	registry     *prometheus.Registry
	metrics      *telemetry.Metrics

	store    store.Store
	Identity AuthProvider
	Sessions *session.Resolver
	Cookies  session.CookieStore
	Guard    *guard.Guard
	Events   *EventHub

	Orders *orders.Service

	// OrderGate serves POST /api/orders, CheckoutGate the checkout
	// completion flow.
	OrderGate    *orders.Gate
	CheckoutGate *orders.Gate
}

func NewRouter(
	buildVersion string,
	st store.Store,
	registry *prometheus.Registry,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		middlewares:  []httpx.Middleware{slogx.HTTPMiddleware(logger)},
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		registry:     registry,
		metrics:      metrics,
		store:        st,
		Events:       NewEventHub(metrics),
	}
}

// ApplyRoutes registers every route and completes the middleware chain. The
// metrics middleware sits directly on the mux so it sees the matched
// pattern.
func (r *Router) ApplyRoutes() {
	if r.Guard != nil {
		r.middlewares = append(r.middlewares, r.Guard.Middleware)
	}
	r.middlewares = append(r.middlewares, session.Middleware, r.metrics.HTTPMiddleware)

	r.registerAuth()
	r.registerOrders()
	r.registerCatalog()
	r.registerPages()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Storefront API
//	@version		0.1.0
//	@description	Cookie-session storefront: login, refresh, orders and checkout.
//	@description
//	@description	Sessions are carried in the sb-access-token, sb-refresh-token and sb-auth-state cookies.
//
//	@BasePath		/
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandlers{
		Identity: r.Identity,
		Sessions: r.Sessions,
		Cookies:  r.Cookies,
		Events:   r.Events,
	}

	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.Login), httpx.RateLimitByIP(httpx.AuthLimit)),
	)
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.Register), httpx.RateLimitByIP(httpx.AuthLimit)),
	)
	r.Mux.Handle("POST /api/auth/logout", http.HandlerFunc(h.Logout))

	// Every open tab refreshes, so refresh and session reads share the
	// public budget.
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.Refresh), httpx.RateLimitByIP(httpx.PublicLimit)),
	)
	r.Mux.Handle("GET /api/auth/session",
		httpx.Chain(http.HandlerFunc(h.Session), httpx.RateLimitByIP(httpx.PublicLimit)),
	)
	r.Mux.Handle("GET /api/auth/events", &EventsHandler{Hub: r.Events, Sessions: r.Sessions})
}

func (r *Router) registerOrders() {
	h := &OrderHandlers{
		Orders:   r.Orders,
		Sessions: r.Sessions,
		Gate:     r.OrderGate,
		Checkout: r.CheckoutGate,
	}
	limited := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, identify(r.Sessions), httpx.RateLimitByUser(httpx.OrderLimit))
	}

	r.Mux.Handle("POST /api/orders", limited(h.Create))
	r.Mux.Handle("GET /api/orders", limited(h.List))
	r.Mux.Handle("POST /api/checkout/complete", limited(h.CompleteCheckout))
}

func (r *Router) registerCatalog() {
	h := &CatalogHandlers{Orders: r.Orders}
	r.Mux.Handle("GET /api/products",
		httpx.Chain(http.HandlerFunc(h.ListProducts), httpx.RateLimitByIP(httpx.PublicLimit)),
	)
}

func (r *Router) registerPages() {
	r.Mux.Handle("GET /{$}", http.RedirectHandler(guard.CatalogPath, http.StatusFound))
	for _, p := range pages {
		r.Mux.Handle("GET "+p.path, pageHandler(p))
	}
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store, r.Identity))
	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
}

// identify resolves the session ahead of the handler so rate limits and logs
// can key on the user. It never rejects; the handler decides.
func identify(sessions *session.Resolver) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Resolve(w, r)
			if err == nil {
				ctx := httpx.WithUserID(r.Context(), sess.User.ID)
				ctx = slogx.WithUser(ctx, sess.User.ID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
