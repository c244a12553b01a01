package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the portal
type Config struct {
	Port          string
	Origin        string
	Environment   string
	LogLevel      string
	SessionSecret string
	SessionTTL    time.Duration
	Backend       BackendConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Chat          ChatConfig
	// FallbackEnabled serves built-in data when the remote API is unreachable.
	FallbackEnabled bool
	SweepInterval   time.Duration
}

// BackendConfig holds the remote HealSync API settings
type BackendConfig struct {
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisConfig holds key/value storage settings. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds database connection details. An empty DSN disables MySQL.
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// ChatConfig holds the chat poller tuning
type ChatConfig struct {
	PollInterval    time.Duration
	MaxPollInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "healsync"),
		DSN:      getEnv("DB_DSN", ""),
	}
	if dbConfig.DSN == "" && dbConfig.Host != "" {
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	sessionHours, err := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_HOURS: %w", err)
	}
	if sessionHours <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL_HOURS: must be positive, got %d", sessionHours)
	}

	chat := ChatConfig{
		PollInterval:    getEnvAsDuration("CHAT_POLL_INTERVAL", 5*time.Second),
		MaxPollInterval: getEnvAsDuration("CHAT_MAX_POLL_INTERVAL", 30*time.Second),
	}
	if chat.MaxPollInterval < chat.PollInterval {
		return nil, fmt.Errorf("CHAT_MAX_POLL_INTERVAL (%s) is shorter than CHAT_POLL_INTERVAL (%s)", chat.MaxPollInterval, chat.PollInterval)
	}

	return &Config{
		Port:          getEnv("PORT", "3001"),
		Origin:        getEnv("ORIGIN", "http://localhost:5500"),
		Environment:   getEnv("APP_ENV", "development"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SessionSecret: getEnv("SESSION_SECRET", "default_session_secret"),
		SessionTTL:    time.Duration(sessionHours) * time.Hour,
		Backend: BackendConfig{
			BaseURL:      strings.TrimRight(getEnv("HEALSYNC_API_URL", "https://healsync-backend-d788.onrender.com"), "/"),
			ReadTimeout:  getEnvAsDuration("API_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("API_WRITE_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database:        dbConfig,
		Chat:            chat,
		FallbackEnabled: getEnvAsBool("FALLBACK_ENABLED", true),
		SweepInterval:   getEnvAsDuration("STORE_SWEEP_INTERVAL", 5*time.Minute),
	}, nil
}

// IsProduction reports whether cookies should be marked secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
