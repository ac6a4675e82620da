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

// JWTConfig provides settings for validating tokens issued by the auth platform.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketFeaturePhotos() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides Redis and asynq settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ImportConfig provides settings for CSV batch imports.
type ImportConfig interface {
	GetImportMaxUploadBytes() int64
	GetImportAsyncThreshold() int
	GetImportSessionTTL() time.Duration
	GetImportSubmitLockTTL() time.Duration
}

// PlacementConfig provides settings for map placement sessions.
type PlacementConfig interface {
	GetPlacementIdleTTL() time.Duration
}

// RateLimitConfig provides settings for the per-IP limiter.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetRateLimitIdleTTL() time.Duration
}

// MetricsConfig provides settings for the Prometheus endpoint.
type MetricsConfig interface {
	IsMetricsEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinIOMaxFileSize         int64
	MinioBucketFeaturePhotos string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	ImportMaxUploadBytes     int64
	ImportAsyncThreshold     int
	ImportSessionTTL         time.Duration
	ImportSubmitLockTTL      time.Duration
	PlacementIdleTTL         time.Duration
	RateLimitRPS             float64
	RateLimitBurst           int
	RateLimitIdleTTL         time.Duration
	MetricsEnabled           bool
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
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string            { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string           { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string           { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64          { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketFeaturePhotos() string { return c.MinioBucketFeaturePhotos }
func (c *Config) IsMinIOEnabled() bool                { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ImportConfig implementation
func (c *Config) GetImportMaxUploadBytes() int64        { return c.ImportMaxUploadBytes }
func (c *Config) GetImportAsyncThreshold() int          { return c.ImportAsyncThreshold }
func (c *Config) GetImportSessionTTL() time.Duration    { return c.ImportSessionTTL }
func (c *Config) GetImportSubmitLockTTL() time.Duration { return c.ImportSubmitLockTTL }

// PlacementConfig implementation
func (c *Config) GetPlacementIdleTTL() time.Duration { return c.PlacementIdleTTL }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64           { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int             { return c.RateLimitBurst }
func (c *Config) GetRateLimitIdleTTL() time.Duration { return c.RateLimitIdleTTL }

// MetricsConfig implementation
func (c *Config) IsMetricsEnabled() bool { return c.MetricsEnabled }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:         mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "20971520")),
		MinioBucketFeaturePhotos: getEnv("MINIO_BUCKET_FEATURE_PHOTOS", "feature-photos"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "imports"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "4"))),
		ImportMaxUploadBytes:     mustInt64(getEnv("IMPORT_MAX_UPLOAD_BYTES", "10485760")),
		ImportAsyncThreshold:     int(mustInt64(getEnv("IMPORT_ASYNC_THRESHOLD", "2000"))),
		ImportSessionTTL:         mustDuration(getEnv("IMPORT_SESSION_TTL", "2h")),
		ImportSubmitLockTTL:      mustDuration(getEnv("IMPORT_SUBMIT_LOCK_TTL", "10m")),
		PlacementIdleTTL:         mustDuration(getEnv("PLACEMENT_IDLE_TTL", "30m")),
		RateLimitRPS:             mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:           int(mustInt64(getEnv("RATE_LIMIT_BURST", "40"))),
		RateLimitIdleTTL:         mustDuration(getEnv("RATE_LIMIT_IDLE_TTL", "10m")),
		MetricsEnabled:           strings.EqualFold(getEnv("METRICS_ENABLED", "true"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.ImportSessionTTL <= 0 {
		return nil, fmt.Errorf("IMPORT_SESSION_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
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

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
