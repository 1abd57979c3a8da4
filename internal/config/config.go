package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	JWTSecret string

	// Vote rate limiting: at most VoteRateLimitMax casts per actor per
	// fixed VoteRateLimitWindow.
	VoteRateLimitWindow time.Duration
	VoteRateLimitMax    int

	// Cron expression for the background karma drift-repair sweep.
	// Empty disables the sweep.
	ReconcileSchedule string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "12345"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "30 * * * *"),
	}

	var err error
	cfg.VoteRateLimitWindow, err = time.ParseDuration(getEnv("VOTE_RATE_LIMIT_WINDOW", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid VOTE_RATE_LIMIT_WINDOW: %w", err)
	}
	cfg.VoteRateLimitMax, err = strconv.Atoi(getEnv("VOTE_RATE_LIMIT_MAX", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid VOTE_RATE_LIMIT_MAX: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
