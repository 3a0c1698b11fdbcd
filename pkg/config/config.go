package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	App       AppConfig
	Instagram InstagramConfig
	Webhook   WebhookConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string
	Format string // json or text
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string
	Version     string
	Name        string
}

// InstagramConfig holds Graph API client configuration
type InstagramConfig struct {
	GraphBaseURL   string
	APIVersion     string
	RequestTimeout time.Duration
	// OverrideToken, when set, is used in place of stored per-account
	// tokens. Operational escape hatch for stale credentials.
	OverrideToken string
}

// WebhookConfig holds webhook ingress configuration
type WebhookConfig struct {
	VerifyToken      string
	AppSecret        string
	RequireSignature bool
	DedupTTL         time.Duration
	ReplyDelay       time.Duration
	LegacyFallback   bool
	LogRetention     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "commentpilot"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Name:        getEnv("APP_NAME", "commentpilot"),
		},
		Instagram: InstagramConfig{
			GraphBaseURL:   getEnv("IG_GRAPH_BASE_URL", "https://graph.instagram.com"),
			APIVersion:     getEnv("IG_API_VERSION", "v21.0"),
			RequestTimeout: getEnvAsDuration("IG_REQUEST_TIMEOUT", 10*time.Second),
			OverrideToken:  getEnv("IG_OVERRIDE_TOKEN", ""),
		},
		Webhook: WebhookConfig{
			VerifyToken:      getEnv("WEBHOOK_VERIFY_TOKEN", ""),
			AppSecret:        getEnv("WEBHOOK_APP_SECRET", ""),
			RequireSignature: getEnvAsBool("WEBHOOK_REQUIRE_SIGNATURE", false),
			DedupTTL:         getEnvAsDuration("WEBHOOK_DEDUP_TTL", 10*time.Minute),
			ReplyDelay:       getEnvAsDuration("WEBHOOK_REPLY_DELAY", 2*time.Second),
			LegacyFallback:   getEnvAsBool("RESOLVER_LEGACY_FALLBACK", false),
			LogRetention:     getEnvAsDuration("AUTOMATION_LOG_RETENTION", 90*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Webhook.VerifyToken == "" {
		return fmt.Errorf("webhook verify token is required")
	}

	if c.App.Environment == "production" {
		if c.Webhook.AppSecret == "" {
			return fmt.Errorf("webhook app secret is required in production")
		}
		if !c.Webhook.RequireSignature {
			return fmt.Errorf("signature verification must not be disabled in production")
		}
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GraphURL returns the versioned Graph API base URL
func (c *Config) GraphURL() string {
	return fmt.Sprintf("%s/%s", c.Instagram.GraphBaseURL, c.Instagram.APIVersion)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
