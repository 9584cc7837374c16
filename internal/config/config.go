package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	ReferralRate ReferralRateConfig `json:"referral_rate"`
	APIRate      APIRateConfig      `json:"api_rate"`
	Email        EmailConfig        `json:"email"`
	Security     SecurityConfig     `json:"security"`
	Tracing      TracingConfig      `json:"tracing"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// RedisConfig holds the shared Redis connection settings used by the
// distributed rate limiter and the group cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ReferralRateConfig bounds how many referrals one referrer may start
// per window.
type ReferralRateConfig struct {
	MaxAttempts   int `json:"max_attempts"`
	WindowMinutes int `json:"window_minutes"`
}

// APIRateConfig holds HTTP-level rate limiting configuration.
type APIRateConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// EmailConfig holds verification email settings. When Enabled is false
// or the credentials are empty, sends are logged and skipped.
type EmailConfig struct {
	Enabled      bool   `json:"enabled"`
	AWSAccessKey string `json:"aws_access_key"`
	AWSSecretKey string `json:"aws_secret_key"`
	AWSRegion    string `json:"aws_region"`
	FromAddress  string `json:"from_address"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from environment variables and/or
// config file. Environment variables take precedence over config file
// values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", ""),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "postgres://localhost:5432/referrals?sslmode=disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ReferralRate: ReferralRateConfig{
			MaxAttempts:   getEnvInt("REFERRAL_RATE_MAX", 5),
			WindowMinutes: getEnvInt("REFERRAL_RATE_WINDOW_MINUTES", 60),
		},
		APIRate: APIRateConfig{
			Enabled: getEnvBool("API_RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("API_RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("API_RATE_LIMIT_WINDOW", 60),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			AWSAccessKey: getEnv("EMAIL_AWS_ACCESS_KEY", ""),
			AWSSecretKey: getEnv("EMAIL_AWS_SECRET_KEY", ""),
			AWSRegion:    getEnv("EMAIL_AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20),
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			Environment: getEnv("TRACING_ENVIRONMENT", "development"),
		},
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		// Environment variables take precedence over the file.
		overrideFromEnv(cfg)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if enabled := os.Getenv("REDIS_ENABLED"); enabled != "" {
		cfg.Redis.Enabled = enabled == "true" || enabled == "1"
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			cfg.Redis.DB = d
		}
	}
	if maxAttempts := os.Getenv("REFERRAL_RATE_MAX"); maxAttempts != "" {
		if m, err := strconv.Atoi(maxAttempts); err == nil {
			cfg.ReferralRate.MaxAttempts = m
		}
	}
	if window := os.Getenv("REFERRAL_RATE_WINDOW_MINUTES"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			cfg.ReferralRate.WindowMinutes = w
		}
	}
	if enabled := os.Getenv("API_RATE_LIMIT_ENABLED"); enabled != "" {
		cfg.APIRate.Enabled = enabled == "true" || enabled == "1"
	}
	if rate := os.Getenv("API_RATE_LIMIT_RATE"); rate != "" {
		if r, err := strconv.Atoi(rate); err == nil {
			cfg.APIRate.Rate = r
		}
	}
	if window := os.Getenv("API_RATE_LIMIT_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			cfg.APIRate.Window = w
		}
	}
	if enabled := os.Getenv("EMAIL_ENABLED"); enabled != "" {
		cfg.Email.Enabled = enabled == "true" || enabled == "1"
	}
	if key := os.Getenv("EMAIL_AWS_ACCESS_KEY"); key != "" {
		cfg.Email.AWSAccessKey = key
	}
	if secret := os.Getenv("EMAIL_AWS_SECRET_KEY"); secret != "" {
		cfg.Email.AWSSecretKey = secret
	}
	if region := os.Getenv("EMAIL_AWS_REGION"); region != "" {
		cfg.Email.AWSRegion = region
	}
	if from := os.Getenv("EMAIL_FROM_ADDRESS"); from != "" {
		cfg.Email.FromAddress = from
	}
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Security.AllowedOrigins = origins
	}
	if enabled := os.Getenv("TRACING_ENABLED"); enabled != "" {
		cfg.Tracing.Enabled = enabled == "true" || enabled == "1"
	}
	if endpoint := os.Getenv("TRACING_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
	}
	if env := os.Getenv("TRACING_ENVIRONMENT"); env != "" {
		cfg.Tracing.Environment = env
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.ReferralRate.MaxAttempts <= 0 {
		return fmt.Errorf("referral rate max attempts must be positive")
	}
	if c.ReferralRate.WindowMinutes <= 0 {
		return fmt.Errorf("referral rate window must be positive")
	}
	if c.APIRate.Enabled && c.APIRate.Rate <= 0 {
		return fmt.Errorf("API rate limit must be positive when enabled")
	}
	if c.Email.Enabled && c.Email.FromAddress == "" {
		return fmt.Errorf("email from address is required when email is enabled")
	}
	return nil
}
