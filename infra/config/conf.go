package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port          string `validate:"required,numeric"`
	BaseURL       string `validate:"required,url"`
	PublicSiteURL string `validate:"required,url"`
	Environment   string `validate:"required"`
	DBDriver      string `validate:"oneof=sqlite postgres"`
	SQLitePath    string `validate:"required_if=DBDriver sqlite"`
	DatabaseURL   string `validate:"required_if=DBDriver postgres"`
	SessionDriver string `validate:"oneof=memory redis"`
	RedisAddr     string `validate:"required_if=SessionDriver redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	IDPayAPIURL   string `validate:"required,url"`

	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string

	RateLimitPerMinute int `validate:"gte=0"`
}

var (
	instance          *Config
	appConfigInstance *AppConfig
)

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:               GetEnv("APP_PORT", "9999"),
			BaseURL:            GetEnv("APP_URL", "http://localhost:9999"),
			PublicSiteURL:      GetEnv("PUBLIC_SITE_URL", GetEnv("APP_URL", "http://localhost:9999")),
			Environment:        GetEnv("ENVIRONMENT", "development"),
			DBDriver:           GetEnv("DB_DRIVER", "sqlite"),
			SQLitePath:         GetEnv("SQLITE_PATH", "./data/idpay.db"),
			DatabaseURL:        GetEnv("DATABASE_URL", ""),
			SessionDriver:      GetEnv("SESSION_BACKEND", "memory"),
			RedisAddr:          GetEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:      GetEnv("REDIS_PASSWORD", ""),
			RedisDB:            GetIntEnv("REDIS_DB", 0),
			IDPayAPIURL:        GetEnv("IDPAY_API_URL", "https://api.idpay.ir"),
			OpenSearchURL:      GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:     GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:     GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:      GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:       GetEnv("LOGGING_LEVEL", "info"),
			RateLimitPerMinute: GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
		}
	}
	return appConfigInstance
}

// Validate checks the configuration for missing or inconsistent values
func (c *AppConfig) Validate() error {
	if err := App().Validator.Struct(c); err != nil {
		return fmt.Errorf("invalid application config: %w", err)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
