package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer       string // TOTP provisioning issuer shown in authenticator apps
	DatabaseFile string // Path to the SQLite database file (default: ./s4.db)

	SessionTTL   time.Duration // Total session validity window (default: 6000s)
	TwoFactorTTL time.Duration // Password-to-code window (default: 600s)

	// DevBypassAuth skips the session gate on protected routes. Development
	// only; logged loudly at startup when set.
	DevBypassAuth bool

	AWSRegion    string // Object store region
	AWSAccessKey string // Object store access key
	AWSSecretKey string // Object store secret key
	AWSBucket    string // Bucket for file payloads
	S3Endpoint   string // Optional endpoint override (MinIO etc.); empty uses AWS

	SMTPAddr     string // host:port of the mail relay; empty logs codes instead
	SMTPUser     string // Relay account, also the From address
	SMTPPassword string // Relay password

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:       getEnvOrDefault("S4_ISSUER", "S4"),
		DatabaseFile: getEnvOrDefault("S4_DATABASE_FILE", "s4.db"),

		SessionTTL:   getEnvDurationOrDefault("SESSION_TTL", 6000*time.Second),
		TwoFactorTTL: getEnvDurationOrDefault("TWOFA_TTL", 600*time.Second),

		DevBypassAuth: getEnvBoolOrDefault("S4_DEV_BYPASS_AUTH", false),

		AWSRegion:    os.Getenv("AWS_REGION"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey: os.Getenv("AWS_SECRET_KEY"),
		AWSBucket:    os.Getenv("AWS_BUCKET_NAME"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),

		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
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

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept durations ("1h", "90s") or bare integer seconds.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
