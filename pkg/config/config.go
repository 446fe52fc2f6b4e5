package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Places      PlacesConfig
	Inference   InferenceConfig
	Discovery   DiscoveryConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PlacesConfig holds remote places provider configuration
type PlacesConfig struct {
	Provider      string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
}

// InferenceConfig holds language model provider configuration.
// Provider is one of "gemini", "openai" or "mock". The openai provider speaks
// the OpenAI-compatible API, so BaseURL may point at a model served locally.
type InferenceConfig struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	RateLimitRPM   int
	RateLimitBurst int
}

// DiscoveryConfig holds orchestration settings
type DiscoveryConfig struct {
	DefaultStrategy    string
	DefaultMaxResults  int
	RadiusMeters       int
	LLMTimeout         time.Duration
	PlacesTimeout      time.Duration
	SingleFlight       bool
	CacheBackend       string
	CacheSweepInterval time.Duration
	AnalyticsEnabled   bool
	EventsEnabled      bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "poi_discovery"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Places: PlacesConfig{
			Provider:      getEnv("PLACES_PROVIDER", "mock"),
			APIKey:        getEnv("PLACES_API_KEY", ""),
			BaseURL:       getEnv("PLACES_BASE_URL", ""),
			Timeout:       getEnvAsDuration("PLACES_HTTP_TIMEOUT", 5*time.Second),
			RetryAttempts: getEnvAsInt("PLACES_RETRY_ATTEMPTS", 2),
		},
		Inference: InferenceConfig{
			Provider:       getEnv("INFERENCE_PROVIDER", "mock"),
			APIKey:         getEnv("INFERENCE_API_KEY", ""),
			Model:          getEnv("INFERENCE_MODEL", ""),
			BaseURL:        getEnv("INFERENCE_BASE_URL", ""),
			MaxTokens:      getEnvAsInt("INFERENCE_MAX_TOKENS", 800),
			RateLimitRPM:   getEnvAsInt("INFERENCE_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("INFERENCE_RATE_LIMIT_BURST", 5),
		},
		Discovery: DiscoveryConfig{
			DefaultStrategy:    strings.ToUpper(getEnv("DISCOVERY_DEFAULT_STRATEGY", "HYBRID")),
			DefaultMaxResults:  getEnvAsInt("DISCOVERY_MAX_RESULTS", 10),
			RadiusMeters:       getEnvAsInt("DISCOVERY_RADIUS_METERS", 5000),
			LLMTimeout:         getEnvAsDuration("DISCOVERY_LLM_TIMEOUT", 2*time.Second),
			PlacesTimeout:      getEnvAsDuration("DISCOVERY_PLACES_TIMEOUT", 3*time.Second),
			SingleFlight:       getEnvAsBool("DISCOVERY_SINGLE_FLIGHT", true),
			CacheBackend:       getEnv("DISCOVERY_CACHE_BACKEND", "memory"),
			CacheSweepInterval: getEnvAsDuration("DISCOVERY_CACHE_SWEEP_INTERVAL", time.Minute),
			AnalyticsEnabled:   getEnvAsBool("DISCOVERY_ANALYTICS_ENABLED", false),
			EventsEnabled:      getEnvAsBool("DISCOVERY_EVENTS_ENABLED", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "poi-discovery"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	switch cfg.Discovery.CacheBackend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported DISCOVERY_CACHE_BACKEND %q", cfg.Discovery.CacheBackend)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerAddr returns the listen address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

// getEnvAsList splits a comma separated value, dropping blank entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("750ms", "2s") or a bare
// integer interpreted as milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
