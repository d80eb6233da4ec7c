package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port          string `yaml:"port" env:"SERVER_PORT"`
		Mode          string `yaml:"mode" env:"SERVER_MODE"`
		AllowedOrigin string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		URL             string `yaml:"url" env:"DATABASE_URL"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	Admin struct {
		Username      string `yaml:"username" env:"ADMIN_USERNAME"`
		Password      string `yaml:"password" env:"ADMIN_PASSWORD"`
		SessionSecret string `yaml:"session_secret" env:"SESSION_SECRET"`
		SessionTTL    string `yaml:"session_ttl" env:"SESSION_TTL"`
		CookieSecure  bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	} `yaml:"admin"`

	RateLimit struct {
		BookingsPerMinute int `yaml:"bookings_per_minute" env:"RATE_LIMIT_BOOKINGS_PER_MINUTE"`
		LoginsPerMinute   int `yaml:"logins_per_minute" env:"RATE_LIMIT_LOGINS_PER_MINUTE"`
		Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
	} `yaml:"rate_limit"`

	Slots struct {
		Days  []string `yaml:"days" env:"SLOT_DAYS"`
		Hours []string `yaml:"hours" env:"SLOT_HOURS"`
	} `yaml:"slots"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file, an optional .env file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load default config with sane defaults
	config := &Config{}
	setDefaults(config)

	// Try to read config file if it exists
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Override with environment variables
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Server defaults
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	// Database defaults
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "slotbook"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 2
	config.Database.MaxOpenConns = 10
	config.Database.ConnMaxLifetime = "1h"

	// Admin defaults
	config.Admin.Username = "admin"
	config.Admin.Password = "admin123"
	config.Admin.SessionTTL = "168h"

	// Rate limit defaults
	config.RateLimit.BookingsPerMinute = 30
	config.RateLimit.LoginsPerMinute = 10
	config.RateLimit.Burst = 10

	// Weekly grid defaults
	config.Slots.Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	config.Slots.Hours = []string{
		"08:00", "09:00", "10:00", "11:00", "12:00", "13:00",
		"14:00", "15:00", "16:00", "17:00", "18:00", "19:00",
	}

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.URL == "" && config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.Admin.Username == "" || config.Admin.Password == "" {
		return fmt.Errorf("admin username and password are required")
	}

	if config.IsProduction() && config.Admin.SessionSecret == "" {
		return fmt.Errorf("session secret is required in production mode")
	}

	if _, err := time.ParseDuration(config.Admin.SessionTTL); err != nil {
		return fmt.Errorf("invalid session TTL format: %w", err)
	}

	if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid connection max lifetime format: %w", err)
	}

	if config.RateLimit.BookingsPerMinute <= 0 || config.RateLimit.LoginsPerMinute <= 0 || config.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if len(config.Slots.Days) == 0 || len(config.Slots.Hours) == 0 {
		return fmt.Errorf("slot grid needs at least one day and one hour")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Mode, "production")
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
