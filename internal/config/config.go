package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource  string
	Port      string
	Env       string
	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads configuration from the environment; a local .env file is
// honored when present. DB_SOURCE may be empty, in which case callers fall
// back to the in-memory store.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBSource:  os.Getenv("DB_SOURCE"),
		Port:      envOr("SERVER_PORT", "8080"),
		Env:       envOr("ENVIRONMENT", "development"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  24 * time.Hour,
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required")
		}
		cfg.JWTSecret = "dev-only-secret"
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
