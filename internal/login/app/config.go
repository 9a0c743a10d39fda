package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer        string        // Issuer claim for session tokens (default: reportline-login)
	SessionSecret string        // Required: HS256 signing secret for session tokens
	SessionTTL    time.Duration // Session token lifetime (default: 24h)

	DatabaseFile string // Path to SQLite database file (default: ./login.db)
	PepperFile   string // Path to password hashing pepper file (default: ./pepper)

	ResendCooldown time.Duration // Minimum gap between OTP sends per attempt (default: 60s)
	CallTimeout    time.Duration // Per-call timeout for backing services (default: 15s)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 10m)
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Issuer:        getEnvOrDefault("LOGIN_ISSUER", "reportline-login"),
		SessionSecret: os.Getenv("LOGIN_SESSION_SECRET"),
		SessionTTL:    getEnvDurationOrDefault("LOGIN_SESSION_TTL", 24*time.Hour),

		DatabaseFile: getEnvOrDefault("LOGIN_DATABASE_FILE", "login.db"),
		PepperFile:   getEnvOrDefault("LOGIN_PEPPER_FILE", "pepper"),

		ResendCooldown: getEnvDurationOrDefault("LOGIN_RESEND_COOLDOWN", 60*time.Second),
		CallTimeout:    getEnvDurationOrDefault("LOGIN_CALL_TIMEOUT", 15*time.Second),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 10*time.Minute),
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
