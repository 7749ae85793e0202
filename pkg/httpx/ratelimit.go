package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Rate limit profiles. Each can be overridden through
// RATELIMIT_{AUTH,ORDER,PUBLIC}_{REQUESTS,WINDOW_SEC,BURST}.
var (
	// AuthLimit guards credential endpoints: login, register, token.
	AuthLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// OrderLimit guards order placement and checkout completion.
	OrderLimit = RateLimitConfig{RequestsPerWindow: 30, Window: time.Minute, Burst: 10}

	// PublicLimit guards read-only endpoints such as the catalogue.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 600, Window: time.Minute, Burst: 100}
)

func init() {
	AuthLimit = ParseRateLimitFromEnv("AUTH", AuthLimit)
	OrderLimit = ParseRateLimitFromEnv("ORDER", OrderLimit)
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", PublicLimit)
}

// ParseRateLimitFromEnv overlays RATELIMIT_{prefix}_* variables onto def.
// Non-positive or unparsable values are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// KeyExtractor derives the bucket key for a request. An empty key bypasses
// the limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor keys on the authenticated user id, if any.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// CompositeKeyExtractor joins the non-empty keys of several extractors.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor keys on a form or query field, e.g. the email on the
// identity token endpoint.
func FormFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	}
}

type keyedLimiter struct {
	cfg   RateLimitConfig
	limit rate.Limit

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

func newKeyedLimiter(cfg RateLimitConfig) *keyedLimiter {
	return &keyedLimiter{
		cfg:      cfg,
		limit:    rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		buckets:  make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}
}

func (k *keyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Full buckets are idle and can be dropped without changing behaviour
	if time.Since(k.lastSweep) > 5*time.Minute {
		for key, l := range k.buckets {
			if l.Tokens() >= float64(k.cfg.Burst) {
				delete(k.buckets, key)
			}
		}
		k.lastSweep = time.Now()
	}

	l, ok := k.buckets[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.cfg.Burst)
		k.buckets[key] = l
	}
	return l
}

// RateLimitMiddleware limits requests per key using a token bucket.
// Rejected requests get 429 with Retry-After.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	kl := newKeyedLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := kl.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", key,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser limits by user id when known, combined with the client IP.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor))
}

// RateLimitByIPAndFormField limits by IP plus a form field such as email.
func RateLimitByIPAndFormField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, FormFieldKeyExtractor(field)))
}
