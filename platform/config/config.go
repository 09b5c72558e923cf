// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq background worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GeminiConfig provides settings for the Gemini inference client.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetInferenceTimeout() time.Duration
}

// QualifyConfig provides tunables for the qualification engine.
type QualifyConfig interface {
	GetSettingsCacheTTL() time.Duration
	GetLateAnswerAcceptThreshold() float64
	GetLateAnswerPromoteThreshold() float64
	GetScannerMinMessageLen() int
	GetDeferralWindow() time.Duration
}

// WidgetAuthConfig provides settings for widget and webhook authentication.
type WidgetAuthConfig interface {
	GetWebhookSecret() string
}

// Config is the concrete application configuration loaded from the
// environment. It satisfies every module-specific interface above.
type Config struct {
	Env          string
	HTTPAddr     string
	DatabaseURL  string
	CORSAllowAll bool
	CORSOrigins  []string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	GeminiAPIKey     string
	GeminiModel      string
	InferenceTimeout time.Duration

	SettingsCacheTTL           time.Duration
	LateAnswerAcceptThreshold  float64
	LateAnswerPromoteThreshold float64
	ScannerMinMessageLen       int
	DeferralWindow             time.Duration

	WebhookSecret string
}

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:          getEnv("APP_ENV", "development"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "qualify"),
		AsynqConcurrency: getEnvInt("ASYNQ_CONCURRENCY", 10),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		InferenceTimeout: mustDuration(getEnv("INFERENCE_TIMEOUT", "20s")),

		SettingsCacheTTL:           mustDuration(getEnv("SETTINGS_CACHE_TTL", "1m")),
		LateAnswerAcceptThreshold:  getEnvFloat("LATE_ANSWER_ACCEPT_THRESHOLD", 0.6),
		LateAnswerPromoteThreshold: getEnvFloat("LATE_ANSWER_PROMOTE_THRESHOLD", 0.8),
		ScannerMinMessageLen:       getEnvInt("SCANNER_MIN_MESSAGE_LEN", 12),
		DeferralWindow:             mustDuration(getEnv("QUALIFY_DEFERRAL_WINDOW", "24h")),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.LateAnswerPromoteThreshold < cfg.LateAnswerAcceptThreshold {
		return nil, fmt.Errorf("LATE_ANSWER_PROMOTE_THRESHOLD must be >= LATE_ANSWER_ACCEPT_THRESHOLD")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetGeminiAPIKey() string   { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string    { return c.GeminiModel }
func (c *Config) GetWebhookSecret() string  { return c.WebhookSecret }

func (c *Config) GetInferenceTimeout() time.Duration { return c.InferenceTimeout }
func (c *Config) GetSettingsCacheTTL() time.Duration { return c.SettingsCacheTTL }
func (c *Config) GetDeferralWindow() time.Duration   { return c.DeferralWindow }

func (c *Config) GetLateAnswerAcceptThreshold() float64  { return c.LateAnswerAcceptThreshold }
func (c *Config) GetLateAnswerPromoteThreshold() float64 { return c.LateAnswerPromoteThreshold }
func (c *Config) GetScannerMinMessageLen() int           { return c.ScannerMinMessageLen }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
