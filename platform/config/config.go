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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CacheConfig provides settings for the status cache.
type CacheConfig interface {
	GetRedisURL() string
	GetStatusCacheTTL() time.Duration
}

// LifecycleConfig provides the business thresholds of the request lifecycle engine.
type LifecycleConfig interface {
	GetLifecycleRules() LifecycleRules
}

// EmailConfig provides settings for notification email delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetStaffNotificationEmail() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	MetricsAddr            string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSOrigins            []string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	StatusCacheTTL         time.Duration
	Lifecycle              LifecycleRules
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	StaffNotificationEmail string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// GetMetricsAddr is where the scheduler binary serves /metrics.
func (c *Config) GetMetricsAddr() string { return c.MetricsAddr }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CacheConfig implementation
func (c *Config) GetStatusCacheTTL() time.Duration { return c.StatusCacheTTL }

// LifecycleConfig implementation
func (c *Config) GetLifecycleRules() LifecycleRules { return c.Lifecycle }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool             { return c.SMTPHost != "" && c.EmailFromAddress != "" }
func (c *Config) GetSMTPHost() string               { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                  { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string           { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string           { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string          { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string       { return c.EmailFromAddress }
func (c *Config) GetStaffNotificationEmail() string { return c.StaffNotificationEmail }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	rules := DefaultLifecycleRules()
	rules.RetrospectiveGrace = durationOr(getEnv("SFR_RETROSPECTIVE_GRACE", ""), rules.RetrospectiveGrace)
	rules.DepartureGrace = durationOr(getEnv("SFR_DEPARTURE_GRACE", ""), rules.DepartureGrace)
	rules.NotificationCountdown = durationOr(getEnv("SFR_NOTIFICATION_COUNTDOWN", ""), rules.NotificationCountdown)
	rules.LockTimeout = durationOr(getEnv("SFR_LOCK_TIMEOUT", ""), rules.LockTimeout)
	rules.NASDLLocationType = intOr(getEnv("SFR_NASDL_LOCATION_TYPE", ""), rules.NASDLLocationType)

	if path := getEnv("SFR_RULES_FILE", ""); path != "" {
		fileRules, err := LoadLifecycleRulesFile(path, rules)
		if err != nil {
			return nil, fmt.Errorf("load SFR_RULES_FILE: %w", err)
		}
		rules = fileRules
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:            getEnv("METRICS_ADDR", ":9090"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSOrigins:            splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       intOr(getEnv("ASYNQ_CONCURRENCY", ""), 10),
		StatusCacheTTL:         durationOr(getEnv("SFR_STATUS_CACHE_TTL", ""), 10*time.Minute),
		Lifecycle:              rules,
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               intOr(getEnv("SMTP_PORT", ""), 587),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Ground Operations"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		StaffNotificationEmail: getEnv("STAFF_NOTIFICATION_EMAIL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.Lifecycle.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func intOr(value string, fallback int) int {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return result
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
