// Package config provides environment-based application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Analysis AnalysisConfig
	Worker   WorkerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Host string
	Port int
}

// AnalysisConfig holds platform-level LLM provider configuration for
// the analysis pipeline. Per-type sampling overrides live in the
// analyzer definitions.
type AnalysisConfig struct {
	// Provider selects the platform text-generation provider:
	// "claude" or "openai".
	Provider string
	// Model overrides the provider's default model.
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Default sampling parameters, used when an analyzer definition
	// does not override them.
	MaxTokens   int
	Temperature float64

	// TimeoutSeconds bounds a single provider HTTP call.
	TimeoutSeconds int
}

// WorkerConfig holds analysis worker configuration.
type WorkerConfig struct {
	// PollInterval is how often each per-type scheduler invokes a batch
	// pass.
	PollInterval time.Duration
	// BatchSize is the completion target N of one batch pass.
	BatchSize int
	// ReclaimAfter is how long a unit may sit in processing before the
	// reconciliation pass returns it to pending.
	ReclaimAfter time.Duration
	// ReclaimSchedule is the cron spec for the reconciliation pass.
	ReclaimSchedule string
	// ReclaimLimit caps reclaimed units per pass.
	ReclaimLimit int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "fleethealth"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "fleethealth"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "fleethealth"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Host: getEnv("METRICS_HOST", "0.0.0.0"),
			Port: getEnvInt("METRICS_PORT", 9090),
		},
		Analysis: AnalysisConfig{
			Provider:        getEnv("ANALYSIS_PROVIDER", "claude"),
			Model:           getEnv("ANALYSIS_MODEL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			MaxTokens:       getEnvInt("ANALYSIS_MAX_TOKENS", 2000),
			Temperature:     getEnvFloat("ANALYSIS_TEMPERATURE", 0.1),
			TimeoutSeconds:  getEnvInt("ANALYSIS_TIMEOUT_SECONDS", 60),
		},
		Worker: WorkerConfig{
			PollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", time.Minute),
			BatchSize:       getEnvInt("WORKER_BATCH_SIZE", 10),
			ReclaimAfter:    getEnvDuration("WORKER_RECLAIM_AFTER", 30*time.Minute),
			ReclaimSchedule: getEnv("WORKER_RECLAIM_SCHEDULE", "@every 10m"),
			ReclaimLimit:    getEnvInt("WORKER_RECLAIM_LIMIT", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration values.
func (c *Config) Validate() error {
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker batch size must be positive")
	}
	switch c.Analysis.Provider {
	case "claude", "openai":
	default:
		return fmt.Errorf("unknown analysis provider: %s", c.Analysis.Provider)
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the metrics listen address.
func (c *MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
