package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the server needs, populated from the environment
// with a .env overlay for local development.
type Config struct {
	HTTPAddr      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	JWTSecret    string
	SessionTTL   time.Duration
	AdminWallets []string

	ExtractTimeout time.Duration
	StoreTimeout   time.Duration
	StoreRetries   int

	GeminiAPIKey          string
	GoogleCredentialsFile string
}

// Load reads the environment. A missing .env file is not an error; missing
// required values are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:              env("HTTP_ADDR", ":8080"),
		PublicBaseURL:         strings.TrimRight(env("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}

	var err error
	if cfg.CacheTTL, err = envDuration("CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ExtractTimeout, err = envDuration("EXTRACT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = envDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreRetries, err = envInt("STORE_RETRIES", 3); err != nil {
		return nil, err
	}

	for _, addr := range strings.Split(os.Getenv("ADMIN_WALLETS"), ",") {
		if addr = strings.ToLower(strings.TrimSpace(addr)); addr != "" {
			cfg.AdminWallets = append(cfg.AdminWallets, addr)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
