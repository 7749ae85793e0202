package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/service"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
)

type Config struct {
	Issuer   string   // Issuer claim for access tokens (default: storefront-identity)
	Audience []string // Audience claim (default: storefront)

	NumKeys                  int           // Number of ephemeral signing keys (default: 2, max: 10)
	AccessTTL                time.Duration // Access token lifetime (default: 1h)
	RefreshTTL               time.Duration // Refresh token lifetime (default: 30 days)
	RequireEmailConfirmation bool          // Refuse password sign-in until the email is confirmed (default: false)

	DatabaseFile         string        // Path to SQLite database file (default: ./identity.db)
	PepperFile           string        // Path to the password pepper file (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 9999)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:                   getEnvOrDefault("IDENTITY_ISSUER", "storefront-identity"),
		Audience:                 strings.Fields(getEnvOrDefault("IDENTITY_AUDIENCE", "storefront")),
		NumKeys:                  getEnvIntOrDefault("IDENTITY_NUM_KEYS", 2),
		AccessTTL:                getEnvDurationOrDefault("IDENTITY_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:               getEnvDurationOrDefault("IDENTITY_REFRESH_TTL", service.DefaultRefreshTokenTTL),
		RequireEmailConfirmation: getEnvBoolOrDefault("IDENTITY_REQUIRE_EMAIL_CONFIRMATION", false),
		DatabaseFile:             getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		PepperFile:               getEnvOrDefault("IDENTITY_PEPPER_FILE", "pepper"),
		Env:                      getEnvOrDefault("ENV", "dev"),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:                getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                     getEnvIntOrDefault("PORT", 9999),
		ShutdownGracePeriod:      getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval:     getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
