package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	RedisURL string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	TwoFactorEncryptionKey string
	TwoFactorPendingTTL    time.Duration

	AllowedEmailDomain string

	RateLimitMaxAttempts int
	RateLimitWindow      time.Duration

	SessionIdleTimeout     time.Duration
	CleanupIntervalMinutes int

	LLMAPIURL    string
	LLMAPIKey    string
	LLMModel     string
	LLMMaxTokens int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	accessTTLMinutes, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL_MINUTES: %w", err)
	}

	refreshTTLDays, err := strconv.Atoi(getEnv("REFRESH_TOKEN_TTL_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL_DAYS: %w", err)
	}

	pendingTTLMinutes, err := strconv.Atoi(getEnv("TWO_FACTOR_PENDING_TTL_MINUTES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid TWO_FACTOR_PENDING_TTL_MINUTES: %w", err)
	}

	rateLimitMax, err := strconv.Atoi(getEnv("RATE_LIMIT_MAX_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX_ATTEMPTS: %w", err)
	}

	rateLimitWindowSeconds, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}

	sessionIdleHours, err := strconv.Atoi(getEnv("SESSION_IDLE_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_HOURS: %w", err)
	}

	cleanupInterval, err := strconv.Atoi(getEnv("CLEANUP_INTERVAL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_INTERVAL_MINUTES: %w", err)
	}

	llmMaxTokens, err := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_TOKENS: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "draftmill"),
		DBPassword: getEnv("DB_PASSWORD", "dev"),
		DBName:     getEnv("DB_NAME", "draftmill"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AccessTokenSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshTokenSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTokenTTL:     time.Duration(accessTTLMinutes) * time.Minute,
		RefreshTokenTTL:    time.Duration(refreshTTLDays) * 24 * time.Hour,

		TwoFactorEncryptionKey: os.Getenv("TWO_FACTOR_ENCRYPTION_KEY"),
		TwoFactorPendingTTL:    time.Duration(pendingTTLMinutes) * time.Minute,

		AllowedEmailDomain: getEnv("ALLOWED_EMAIL_DOMAIN", "org.com"),

		RateLimitMaxAttempts: rateLimitMax,
		RateLimitWindow:      time.Duration(rateLimitWindowSeconds) * time.Second,

		SessionIdleTimeout:     time.Duration(sessionIdleHours) * time.Hour,
		CleanupIntervalMinutes: cleanupInterval,

		LLMAPIURL:    getEnv("LLM_API_URL", "https://api.anthropic.com/v1/messages"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     getEnv("LLM_MODEL", "claude-3-opus-20240229"),
		LLMMaxTokens: llmMaxTokens,

		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}

	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecrets ensures the signing and encryption keys are present and
// that the two token secrets are actually independent.
func (c *Config) validateSecrets() error {
	missing := []string{}
	if c.AccessTokenSecret == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if c.RefreshTokenSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if c.TwoFactorEncryptionKey == "" {
		missing = append(missing, "TWO_FACTOR_ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
