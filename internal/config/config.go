package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the development secret; Validate rejects it in production
const DefaultJWTSecret = "your-secret-key-change-in-production"

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	Environment string `yaml:"environment"`
	ListenAddr  string `yaml:"listen_addr"`

	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	BackendRetries int           `yaml:"backend_retries"`

	CacheBackend  string        `yaml:"cache_backend"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	LocationIndentMarker string `yaml:"location_indent_marker"`
	EnableMetrics        bool   `yaml:"enable_metrics"`

	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_iss"`
	JWTAudience string        `yaml:"jwt_aud"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
}

func defaults() *Config {
	return &Config{
		Environment:          "development",
		ListenAddr:           ":8080",
		BackendURL:           "http://localhost:8000/api",
		BackendTimeout:       10 * time.Second,
		BackendRetries:       0,
		CacheBackend:         CacheMemory,
		CacheTTL:             30 * time.Second,
		RedisAddr:            "localhost:6379",
		LogLevel:             "info",
		LogFormat:            "json",
		LocationIndentMarker: "— ",
		EnableMetrics:        true,
		JWTSecret:            DefaultJWTSecret,
		JWTIssuer:            "equipment-inventory",
		JWTAudience:          "equipment-inventory-console",
		JWTExpiry:            24 * time.Hour, // Default to 24 hours
	}
}

// Load reads the configuration from environment variables over the defaults
func Load() *Config {
	config := defaults()
	config.applyEnv()
	return config
}

// LoadFile reads a YAML file over the defaults, then applies environment
// variables on top of it
func LoadFile(path string) (*Config, error) {
	config := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	config.applyEnv()
	return config, nil
}

// LoadAndValidate loads the configuration (from CONFIG_FILE when set) and validates it
func LoadAndValidate() (*Config, error) {
	var config *Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		c, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		config = c
	} else {
		config = Load()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.BackendURL = getEnv("BACKEND_URL", c.BackendURL)
	c.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", c.BackendTimeout)
	c.BackendRetries = getEnvInt("BACKEND_RETRIES", c.BackendRetries)
	c.CacheBackend = getEnv("CACHE_BACKEND", c.CacheBackend)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LocationIndentMarker = getEnv("LOCATION_INDENT_MARKER", c.LocationIndentMarker)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISS", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUD", c.JWTAudience)
	c.JWTExpiry = getEnvDuration("JWT_EXPIRY", c.JWTExpiry)
}

// IsProduction reports whether the console runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks every setting and returns the first problem found
func (c *Config) Validate() error {
	if err := c.validateJWT(); err != nil {
		return err
	}

	u, err := url.Parse(c.BackendURL)
	if c.BackendURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}
	if c.BackendTimeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	if c.BackendRetries < 0 || c.BackendRetries > 5 {
		return fmt.Errorf("BACKEND_RETRIES must be between 0 and 5, got %d", c.BackendRetries)
	}

	switch c.CacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, redis, none, got %q", c.CacheBackend)
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL cannot be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func (c *Config) validateJWT() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if c.IsProduction() && c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed from the default in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS is required")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD is required")
	}
	if c.JWTExpiry < time.Minute {
		return errors.New("JWT_EXPIRY must be at least 1 minute")
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return errors.New("JWT_EXPIRY must not exceed 30 days")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
