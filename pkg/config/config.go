package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// EnvironmentDevelopment is the only environment in which the raw login
// code may be echoed back to the caller
const EnvironmentDevelopment = "development"

// Config holds all application configuration
type Config struct {
	// Environment name, e.g. "production" or "development"
	Environment string

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	SuperAdmin    SuperAdminConfig
	RBAC          RBACConfig
	Subscription  SubscriptionConfig
	Shares        SharesConfig
	Audit         AuditConfig
	Blob          BlobConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Public base URLs used to build share entry and redirect links
	APIBaseURL string
	WebBaseURL string

	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds optional Redis settings. An empty URL disables Redis.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// AuthConfig holds session and login-code settings
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	CodeTTL        time.Duration
	CodePepper     string
	PasswordPepper string
	DevCodeEnabled bool

	// Per client IP limit on login code requests
	CodeRequestWindow time.Duration
	CodeRequestMax    int
}

// SuperAdminConfig holds the cross-tenant operator allowlist
type SuperAdminConfig struct {
	Enabled bool
	Emails  []string
	// File, when set, replaces Enabled and Emails with a hot-reloaded YAML source
	File string
}

// RBACConfig holds route policy and membership cache settings
type RBACConfig struct {
	RoutePolicyFile     string
	MembershipCacheTTL  time.Duration
	MembershipCacheSize int
}

// SubscriptionConfig holds plan gate settings
type SubscriptionConfig struct {
	ActivationCodePepper string
	// CacheTTL of zero disables the Redis subscription cache
	CacheTTL time.Duration
}

// SharesConfig holds public share signing and entry rate limit settings
type SharesConfig struct {
	SigningSecret  string
	SignedURLTTL   time.Duration
	RateLimitStore string // "memory" or "redis"
	RateWindow     time.Duration
	RateMax        int
	SweepThreshold int
	SweepSchedule  string
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	DatabaseEnabled bool
	AMQPURL         string
	AMQPQueue       string
	Workers         int
	QueueSize       int
}

// BlobConfig holds product image storage settings
type BlobConfig struct {
	Root           string
	MaxUploadBytes int64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from the environment. Files listed in
// envFiles (or ".env" when none are given) are loaded first when they
// exist; variables already set in the environment take precedence.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:   getEnv("TENANTGATE_ENV", "production"),
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		SuperAdmin:    loadSuperAdminConfig(),
		RBAC:          loadRBACConfig(),
		Shares:        loadSharesConfig(),
		Audit:         loadAuditConfig(),
		Blob:          loadBlobConfig(),
		Observability: loadObservabilityConfig(),
	}
	cfg.Subscription = SubscriptionConfig{
		ActivationCodePepper: getEnv("TENANTGATE_ACTIVATION_CODE_PEPPER", cfg.Auth.CodePepper),
		CacheTTL:             getEnvDuration("TENANTGATE_SUBSCRIPTION_CACHE_TTL", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TENANTGATE_HOST", "0.0.0.0"),
		Port:            getEnv("TENANTGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TENANTGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TENANTGATE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("TENANTGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TENANTGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		APIBaseURL:      strings.TrimRight(getEnv("TENANTGATE_API_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		WebBaseURL:      strings.TrimRight(getEnv("TENANTGATE_WEB_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigins:     getEnvList("TENANTGATE_CORS_ORIGINS"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("TENANTGATE_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("TENANTGATE_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("TENANTGATE_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("TENANTGATE_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("TENANTGATE_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("TENANTGATE_POSTGRES_MAX_LIFETIME", time.Hour),
		MaxIdleTime: getEnvDuration("TENANTGATE_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("TENANTGATE_REDIS_URL", ""),
		Password: getEnv("TENANTGATE_REDIS_PASSWORD", ""),
		DB:       getEnvInt("TENANTGATE_REDIS_DB", 0),
		PoolSize: getEnvInt("TENANTGATE_REDIS_POOL_SIZE", 0),
	}
}

func loadAuthConfig() AuthConfig {
	codePepper := getEnv("TENANTGATE_AUTH_CODE_PEPPER", "")
	return AuthConfig{
		JWTSecret:      getEnv("TENANTGATE_JWT_SECRET", ""),
		TokenTTL:       time.Duration(getEnvInt("TENANTGATE_TOKEN_TTL_SECONDS", 7*24*60*60)) * time.Second,
		CodeTTL:        time.Duration(getEnvInt("TENANTGATE_AUTH_CODE_TTL_MINUTES", 10)) * time.Minute,
		CodePepper:     codePepper,
		PasswordPepper: getEnv("TENANTGATE_AUTH_PASSWORD_PEPPER", codePepper),
		DevCodeEnabled: getEnvBool("TENANTGATE_AUTH_DEV_CODE_ENABLED", false),

		CodeRequestWindow: time.Duration(getEnvInt("TENANTGATE_AUTH_CODE_REQUEST_RATE_WINDOW_MS", 60000)) * time.Millisecond,
		CodeRequestMax:    getEnvInt("TENANTGATE_AUTH_CODE_REQUEST_RATE_MAX", 5),
	}
}

func loadSuperAdminConfig() SuperAdminConfig {
	return SuperAdminConfig{
		Enabled: getEnvBool("TENANTGATE_SUPER_ADMIN_ENABLED", false),
		Emails:  getEnvList("TENANTGATE_SUPER_ADMIN_EMAILS"),
		File:    getEnv("TENANTGATE_SUPER_ADMIN_FILE", ""),
	}
}

func loadRBACConfig() RBACConfig {
	return RBACConfig{
		RoutePolicyFile:     getEnv("TENANTGATE_ROUTE_POLICY_FILE", ""),
		MembershipCacheTTL:  getEnvDuration("TENANTGATE_MEMBERSHIP_CACHE_TTL", 0),
		MembershipCacheSize: getEnvInt("TENANTGATE_MEMBERSHIP_CACHE_SIZE", 10000),
	}
}

func loadSharesConfig() SharesConfig {
	return SharesConfig{
		SigningSecret:  getEnv("TENANTGATE_SHARE_SIGNING_SECRET", ""),
		SignedURLTTL:   time.Duration(getEnvInt("TENANTGATE_SHARE_SIGNED_URL_TTL_SECONDS", 300)) * time.Second,
		RateLimitStore: strings.ToLower(getEnv("TENANTGATE_SHARE_RATE_LIMIT_STORE", "memory")),
		RateWindow:     time.Duration(getEnvInt("TENANTGATE_SHARE_ENTRY_RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		RateMax:        getEnvInt("TENANTGATE_SHARE_ENTRY_RATE_LIMIT_MAX", 20),
		SweepThreshold: getEnvInt("TENANTGATE_SHARE_ENTRY_RATE_LIMIT_SWEEP_THRESHOLD", 2000),
		SweepSchedule:  getEnv("TENANTGATE_SHARE_ENTRY_SWEEP_SCHEDULE", "@every 1m"),
	}
}

func loadBlobConfig() BlobConfig {
	return BlobConfig{
		Root:           getEnv("TENANTGATE_BLOB_ROOT", ".data/uploads"),
		MaxUploadBytes: int64(getEnvInt("TENANTGATE_MAX_UPLOAD_BYTES", 10<<20)),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		DatabaseEnabled: getEnvBool("TENANTGATE_AUDIT_DB_ENABLED", true),
		AMQPURL:         getEnv("TENANTGATE_AUDIT_AMQP_URL", ""),
		AMQPQueue:       getEnv("TENANTGATE_AUDIT_AMQP_QUEUE", "tenantgate.audit"),
		Workers:         getEnvInt("TENANTGATE_AUDIT_WORKERS", 4),
		QueueSize:       getEnvInt("TENANTGATE_AUDIT_QUEUE_SIZE", 1024),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("TENANTGATE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TENANTGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TENANTGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TENANTGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TENANTGATE_OTEL_SERVICE_NAME", "tenantgate"),
		OTelServiceVersion: getEnv("TENANTGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TENANTGATE_OTEL_INSECURE", true),
	}
}

// IsDevelopment reports whether the development environment is active
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// Validate checks if the configuration is valid. Missing secrets are
// fatal at startup.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("TENANTGATE_JWT_SECRET is required")
	}
	if c.Shares.SigningSecret == "" {
		return fmt.Errorf("TENANTGATE_SHARE_SIGNING_SECRET is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("TENANTGATE_POSTGRES_URL is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("login code TTL must be positive")
	}
	if c.Shares.SignedURLTTL <= 0 {
		return fmt.Errorf("signed URL TTL must be positive")
	}
	if c.Shares.RateWindow <= 0 || c.Shares.RateMax <= 0 {
		return fmt.Errorf("share entry rate limit window and max must be positive")
	}
	if c.Auth.CodeRequestWindow <= 0 || c.Auth.CodeRequestMax <= 0 {
		return fmt.Errorf("login code request rate limit window and max must be positive")
	}
	if c.Blob.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	switch c.Shares.RateLimitStore {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("TENANTGATE_REDIS_URL is required for the redis rate limit store")
		}
	default:
		return fmt.Errorf("invalid rate limit store: %s (must be memory or redis)", c.Shares.RateLimitStore)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a trimmed
// list, dropping empty entries
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
