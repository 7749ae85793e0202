package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/session"
)

type Config struct {
	IdentityURL    string // Identity provider base URL (default: http://localhost:9999)
	InternalAPIURL string // Base URL the checkout flow uses to reach this server's own API (default: http://localhost:PORT)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseURL    string // SQLite file or postgres:// URL (default: ./storefront.db)

	SecureCookies      bool          // Mark session cookies Secure (default: true when ENV=prod)
	RefreshWait        time.Duration // How long a request waits on an in-flight refresh (default: 10s)
	RefreshCallTimeout time.Duration // Bound on one provider refresh call (default: 15s)
	RefreshGrace       time.Duration // How long a completed rotation is shared with late callers (default: 30s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "dev")
	port := getEnvIntOrDefault("PORT", 8080)

	return Config{
		IdentityURL:         getEnvOrDefault("STOREFRONT_IDENTITY_URL", "http://localhost:9999"),
		InternalAPIURL:      getEnvOrDefault("STOREFRONT_INTERNAL_API_URL", "http://localhost:"+strconv.Itoa(port)),
		DatabaseDriver:      getEnvOrDefault("STOREFRONT_DATABASE_DRIVER", "sqlite"),
		DatabaseURL:         getEnvOrDefault("STOREFRONT_DATABASE_URL", "storefront.db"),
		SecureCookies:       getEnvBoolOrDefault("STOREFRONT_SECURE_COOKIES", env == "prod"),
		RefreshWait:         getEnvDurationOrDefault("STOREFRONT_REFRESH_WAIT", session.DefaultRefreshWait),
		RefreshCallTimeout:  getEnvDurationOrDefault("STOREFRONT_REFRESH_CALL_TIMEOUT", session.DefaultRefreshCallTimeout),
		RefreshGrace:        getEnvDurationOrDefault("STOREFRONT_REFRESH_GRACE", session.DefaultRefreshGrace),
		Env:                 env,
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                port,
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s", "1h") and plain
// integers, which are minutes.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}
