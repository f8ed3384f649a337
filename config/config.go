package config

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/coffee-shop/backend/auth0"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth0         Auth0Config
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ResetOnStart     bool // drop, recreate and seed the drinks table at startup
}

// Auth0Config holds the token issuer and API settings the authorization gate checks against
type Auth0Config struct {
	Domain     string // tenant domain, e.g. coffee.us.auth0.com
	Audience   string // API identifier tokens must be minted for
	Algorithms []string
	Issuer     string // overrides https://<Domain>/
	JWKSURL    string // overrides https://<Domain>/.well-known/jwks.json

	JWKSTimeout    time.Duration
	JWKSCacheTTL   time.Duration // zero fetches the key set on every request
	JWKSMaxRetries int
	Leeway         time.Duration

	PermissionDeniedStatus int
}

// CORSConfig holds cross-origin settings for the browser frontend
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string // json or console
	MetricsEnabled   bool
	MetricsNamespace string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth0: Auth0Config{
			Domain:                 getEnv("AUTH0_DOMAIN", ""),
			Audience:               getEnv("API_AUDIENCE", ""),
			Algorithms:             getEnvAsList("ALGORITHMS", []string{"RS256"}),
			Issuer:                 getEnv("AUTH0_ISSUER", ""),
			JWKSURL:                getEnv("AUTH0_JWKS_URL", ""),
			JWKSTimeout:            getEnvAsDuration("AUTH0_JWKS_TIMEOUT", 5*time.Second),
			JWKSCacheTTL:           getEnvAsDuration("AUTH0_JWKS_CACHE_TTL", 0),
			JWKSMaxRetries:         getEnvAsInt("AUTH0_JWKS_MAX_RETRIES", 2),
			Leeway:                 getEnvAsDuration("AUTH0_LEEWAY", 0),
			PermissionDeniedStatus: getEnvAsInt("AUTH_PERMISSION_DENIED_STATUS", http.StatusUnauthorized),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			LogFormat:        getEnv("LOG_FORMAT", "json"),
			MetricsEnabled:   getEnvAsBool("METRICS_ENABLED", true),
			MetricsNamespace: getEnv("METRICS_NAMESPACE", "coffee_shop"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Auth0 validation (required in production)
	if c.IsProduction() {
		if c.Auth0.Domain == "" {
			return fmt.Errorf("auth0 domain is required in production")
		}
		if c.Auth0.Audience == "" {
			return fmt.Errorf("api audience is required in production")
		}
	}
	if c.Auth0.Enabled() && c.Auth0.Audience == "" {
		return fmt.Errorf("api audience is required when auth0 is configured")
	}
	for _, alg := range c.Auth0.Algorithms {
		if strings.HasPrefix(alg, "HS") || strings.EqualFold(alg, "none") {
			return fmt.Errorf("algorithm %q is not allowed: only asymmetric algorithms are supported", alg)
		}
	}
	switch c.Auth0.PermissionDeniedStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
	default:
		return fmt.Errorf("permission denied status must be 401 or 403, got %d", c.Auth0.PermissionDeniedStatus)
	}
	if c.Auth0.JWKSMaxRetries < 0 {
		return fmt.Errorf("jwks max retries must not be negative")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Enabled reports whether an issuer is configured
func (a *Auth0Config) Enabled() bool {
	return a.Domain != "" || (a.Issuer != "" && a.JWKSURL != "")
}

// IssuerURL returns the expected iss claim
func (a *Auth0Config) IssuerURL() string {
	if a.Issuer != "" {
		return a.Issuer
	}
	return auth0.IssuerURL(a.Domain)
}

// KeySetURL returns the location of the issuer's signing keys
func (a *Auth0Config) KeySetURL() string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	return auth0.JWKSURL(a.Domain)
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ResetOnStart:    getEnvAsBool("DB_RESET_ON_START", false),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "postgres")
	cfg.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database = getEnv("DB_NAME", "coffee_shop")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 5000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 5000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
