package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	DatabaseFile   string // Path to SQLite database file (default: ./zerohunger.db)
	PepperFile     string // Path to file containing pepper for password hashing (default: ./pepper)
	SessionKeyFile string // Path to the Ed25519 PEM key that signs session tokens (default: ./session.pem)

	SessionTTL          time.Duration // Lifetime of a login (default: 12h)
	SessionCookieSecure bool          // Set Secure on the session cookie (default: true outside dev)
	MFAIssuer           string        // Issuer shown in authenticator apps (default: ZeroHunger)

	RedisURL     string   // Optional: sessions and locations live in Redis when set
	KafkaBrokers []string // Optional: lifecycle events go to Kafka when set
	KafkaTopic   string   // Kafka topic for lifecycle events (default: zerohunger.donations)

	LocationPushInterval time.Duration // Websocket location push period (default: 5s)
	CORSAllowedOrigins   []string      // Optional: comma separated origins; empty allows any without credentials

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired session cleanup interval (default: 1h)
}

// LoadConfig reads the environment, after loading ENV_FILE (default .env)
// when that file exists. Variables already set win over the file.
func LoadConfig() (Config, error) {
	envFile := getEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	env := getEnvOrDefault("ENV", "dev")
	cfg := Config{
		Env:       env,
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "zerohunger.db"),
		PepperFile:     getEnvOrDefault("PEPPER_FILE", "pepper"),
		SessionKeyFile: getEnvOrDefault("SESSION_KEY_FILE", "session.pem"),

		SessionTTL:          getEnvDurationOrDefault("SESSION_TTL", 12*time.Hour),
		SessionCookieSecure: getEnvBoolOrDefault("SESSION_COOKIE_SECURE", env != "dev"),
		MFAIssuer:           getEnvOrDefault("MFA_ISSUER", "ZeroHunger"),

		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC", "zerohunger.donations"),

		LocationPushInterval: getEnvDurationOrDefault("LOCATION_PUSH_INTERVAL", 5*time.Second),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg, nil
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

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
