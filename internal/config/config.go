package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for registration-engine
type Config struct {
	Server        ServerConfig
	Upstream      UpstreamConfig
	Auth          AuthConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AMQP          AMQPConfig
	Questionnaire QuestionnaireConfig
	Registration  RegistrationConfig
	Cleanup       CleanupConfig
	I18n          I18nConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// UpstreamConfig holds the foundation API connection
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // zero disables the timeout
}

// AuthConfig holds identity token verification settings
type AuthConfig struct {
	JWTSecret string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables the
// outcome ledger.
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration. An empty address disables the
// profile cache.
type RedisConfig struct {
	Address         string
	Password        string
	DB              int
	ProfileCacheTTL time.Duration
}

// AMQPConfig holds RabbitMQ configuration. An empty URL disables publishing.
type AMQPConfig struct {
	URL   string
	Queue string
}

// QuestionnaireConfig points at the questionnaire settings file
type QuestionnaireConfig struct {
	SettingsPath string
}

// RegistrationConfig holds registration flow settings
type RegistrationConfig struct {
	IdleTTL         time.Duration
	EnrollmentsPath string
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration
}

// I18nConfig holds message rendering settings
type I18nConfig struct {
	DefaultLocale string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	// .env is optional when the environment is provided by the deployment
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", ""),
			APIKey:  getEnv("UPSTREAM_API_KEY", ""),
			Timeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", ""),
			MaxOpenConns: getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Redis: RedisConfig{
			Address:         getEnv("REDIS_ADDRESS", ""),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			ProfileCacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		},
		AMQP: AMQPConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("AMQP_QUEUE", "enrollment.confirmed"),
		},
		Questionnaire: QuestionnaireConfig{
			SettingsPath: getEnv("QUESTIONNAIRE_SETTINGS", "./config/questionnaire.yaml"),
		},
		Registration: RegistrationConfig{
			IdleTTL:         getEnvAsDuration("REGISTRATION_IDLE_TTL", 30*time.Minute),
			EnrollmentsPath: getEnv("ENROLLMENTS_PATH", "/my-enrollments"),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid upstream base URL: %q", c.Upstream.BaseURL)
	}

	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("invalid upstream timeout: %s", c.Upstream.Timeout)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Registration.IdleTTL <= 0 {
		return fmt.Errorf("invalid registration idle TTL: %s", c.Registration.IdleTTL)
	}

	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %s", c.Cleanup.Interval)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
