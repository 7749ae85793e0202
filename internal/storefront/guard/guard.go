// Package guard redirects page requests on the presence of the auth-state
// marker alone. It keeps protected page shells from rendering for visitors
// who are plainly logged out; the session resolver inside each handler is
// the real boundary.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
)

// Class is the guard's view of a path.
type Class int

const (
	Public Class = iota
	Protected
	AuthOnly
	Excluded
)

func (c Class) String() string {
	switch c {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth-only"
	case Excluded:
		return "excluded"
	default:
		return "public"
	}
}

const (
	// AuthCheckHeader is set on authenticated passthrough so the page can
	// kick off a background refresh.
	AuthCheckHeader = "X-Auth-Check"

	LoginPath   = "/auth/login"
	CatalogPath = "/products"
)

type Config struct {
	Protected []string
	AuthOnly  []string
	Excluded  []string
	Metrics   *telemetry.Metrics
}

// DefaultConfig is the storefront's path table.
func DefaultConfig() Config {
	return Config{
		Protected: []string{"/cart", "/account", "/orders", "/cart/checkout"},
		AuthOnly:  []string{LoginPath},
		Excluded:  []string{"/api/", "/swagger/", "/metrics", "/livez", "/readyz"},
	}
}

type Guard struct {
	cfg Config
}

func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Classify returns the class of path. Exclusions win, then auth-only, then
// protected.
func (g *Guard) Classify(path string) Class {
	switch {
	case hasAnyPrefix(path, g.cfg.Excluded):
		return Excluded
	case hasAnyPrefix(path, g.cfg.AuthOnly):
		return AuthOnly
	case hasAnyPrefix(path, g.cfg.Protected):
		return Protected
	}
	return Public
}

// Middleware applies the redirect rules.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := g.Classify(r.URL.Path)
		if class == Excluded {
			next.ServeHTTP(w, r)
			return
		}

		marked := session.CookieStore{}.Read(r).Marked()

		switch {
		case class == Protected && !marked:
			g.cfg.Metrics.GuardDecision("redirect_login")
			http.Redirect(w, r, LoginRedirect(r.URL.Path), http.StatusFound)
			return

		case class == AuthOnly && marked:
			g.cfg.Metrics.GuardDecision("redirect_catalog")
			http.Redirect(w, r, CatalogPath, http.StatusFound)
			return
		}

		g.cfg.Metrics.GuardDecision("pass")
		if marked {
			w.Header().Set(AuthCheckHeader, "refresh")
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRedirect is the login URL that returns to path afterwards. Slashes
// stay literal, which RFC 3986 allows in a query.
func LoginRedirect(path string) string {
	return LoginPath + "?redirect=" + strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
