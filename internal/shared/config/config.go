package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob of the engine. It is loaded once in main
// and injected into the components, there is no package-level state.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RedisAddr empty means the in-process event bus is used instead.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Deadline scheduler retry tuning.
	CloseRetryBase time.Duration
	CloseRetryMax  time.Duration
	CloseRetries   int
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	retries, err := strconv.Atoi(getEnv("CLOSE_RETRIES", "5"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid CLOSE_RETRIES: %w", err)
	}
	retryBase, err := time.ParseDuration(getEnv("CLOSE_RETRY_BASE", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid CLOSE_RETRY_BASE: %w", err)
	}
	retryMax, err := time.ParseDuration(getEnv("CLOSE_RETRY_MAX", "30s"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid CLOSE_RETRY_MAX: %w", err)
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":9000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		CloseRetryBase: retryBase,
		CloseRetryMax:  retryMax,
		CloseRetries:   retries,
	}, nil
}

// PostgresDSN builds the connection string for pgx and golang-migrate.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
