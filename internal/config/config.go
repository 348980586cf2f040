package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env         string
	Port        string
	DatabaseURL string

	// RedisURL is optional: when empty, logout token revocation degrades to
	// a no-op and tokens stay valid until expiry.
	RedisURL string

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir     string
	MaxUploadSize int64 // bytes, per file
	MaxBatchSize  int   // files per upload call

	LogLevel  string
	LogFormat string

	SeedDevData bool
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Env:           getEnvWithDefault("ENV", "development"),
		Port:          getEnvWithDefault("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTL:      getDurationWithDefault("TOKEN_TTL", 24*time.Hour),
		UploadDir:     getEnvWithDefault("UPLOAD_DIR", "uploads"),
		MaxUploadSize: getInt64WithDefault("MAX_UPLOAD_SIZE", 10<<20),
		MaxBatchSize:  getIntWithDefault("MAX_BATCH_SIZE", 5),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvWithDefault("LOG_FORMAT", "text"),
		SeedDevData:   os.Getenv("SEED_DEV_DATA") == "true",
	}

	// Warn if using default JWT secret (insecure for production)
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default JWT_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	return cfg
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("WARNING: invalid duration for %s, using default %s", key, defaultValue)
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("WARNING: invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("WARNING: invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}
