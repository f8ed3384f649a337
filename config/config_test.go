package config

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 5000, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "coffee_shop", cfg.Database.Database)
				assert.False(t, cfg.Database.ResetOnStart)
				assert.False(t, cfg.Auth0.Enabled())
				assert.Equal(t, []string{"RS256"}, cfg.Auth0.Algorithms)
				assert.Equal(t, http.StatusUnauthorized, cfg.Auth0.PermissionDeniedStatus)
				assert.Zero(t, cfg.Auth0.JWKSCacheTTL)
				assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT":  "production",
				"SERVER_PORT":  "9000",
				"DB_HOST":      "prod-db.example.com",
				"DB_PORT":      "5433",
				"AUTH0_DOMAIN": "coffee.us.auth0.com",
				"API_AUDIENCE": "coffee",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "prod-db.example.com", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.True(t, cfg.Auth0.Enabled())
				assert.Equal(t, "https://coffee.us.auth0.com/", cfg.Auth0.IssuerURL())
				assert.Equal(t, "https://coffee.us.auth0.com/.well-known/jwks.json", cfg.Auth0.KeySetURL())
			},
		},
		{
			name: "auth0 overrides",
			envVars: map[string]string{
				"AUTH0_DOMAIN":                  "coffee.us.auth0.com",
				"API_AUDIENCE":                  "coffee",
				"ALGORITHMS":                    "RS256, ES256",
				"AUTH0_ISSUER":                  "https://login.example.com/",
				"AUTH0_JWKS_URL":                "http://keys.internal/jwks.json",
				"AUTH0_JWKS_TIMEOUT":            "2s",
				"AUTH0_JWKS_CACHE_TTL":          "10m",
				"AUTH0_JWKS_MAX_RETRIES":        "4",
				"AUTH0_LEEWAY":                  "30s",
				"AUTH_PERMISSION_DENIED_STATUS": "403",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"RS256", "ES256"}, cfg.Auth0.Algorithms)
				assert.Equal(t, "https://login.example.com/", cfg.Auth0.IssuerURL())
				assert.Equal(t, "http://keys.internal/jwks.json", cfg.Auth0.KeySetURL())
				assert.Equal(t, 2*time.Second, cfg.Auth0.JWKSTimeout)
				assert.Equal(t, 10*time.Minute, cfg.Auth0.JWKSCacheTTL)
				assert.Equal(t, 4, cfg.Auth0.JWKSMaxRetries)
				assert.Equal(t, 30*time.Second, cfg.Auth0.Leeway)
				assert.Equal(t, http.StatusForbidden, cfg.Auth0.PermissionDeniedStatus)
			},
		},
		{
			name: "custom timeouts and pool settings",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"DB_MAX_OPEN_CONNS":    "50",
				"DB_MAX_IDLE_CONNS":    "10",
				"DB_RESET_ON_START":    "true",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, 10, cfg.Database.MaxIdleConns)
				assert.True(t, cfg.Database.ResetOnStart)
			},
		},
		{
			name: "database url",
			envVars: map[string]string{
				"DATABASE_URL":      "postgres://u:p@db.example.com:6543/menu?sslmode=require",
				"DB_MAX_OPEN_CONNS": "7",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.example.com:6543/menu?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.example.com port=6543 database=menu", cfg.Database.LogString())
				assert.Equal(t, 7, cfg.Database.MaxOpenConns)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":         "debug",
				"LOG_FORMAT":        "console",
				"METRICS_ENABLED":   "false",
				"METRICS_NAMESPACE": "menu",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
				assert.Equal(t, "menu", cfg.Observability.MetricsNamespace)
			},
		},
		{
			name: "cors origins",
			envVars: map[string]string{
				"CORS_ALLOWED_ORIGINS": "http://localhost:8100, https://menu.example.com,",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"http://localhost:8100", "https://menu.example.com"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "production without auth0 config",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
		{
			name: "symmetric algorithm rejected",
			envVars: map[string]string{
				"ALGORITHMS": "HS256",
			},
			wantErr: true,
		},
		{
			name: "unsupported denial status",
			envVars: map[string]string{
				"AUTH_PERMISSION_DENIED_STATUS": "418",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Auth0: Auth0Config{
			Algorithms:             []string{"RS256"},
			PermissionDeniedStatus: http.StatusUnauthorized,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid development config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name:    "missing database user",
			mutate:  func(c *Config) { c.Database.User = "" },
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name:    "missing database name",
			mutate:  func(c *Config) { c.Database.Database = "" },
			wantErr: true,
			errMsg:  "database name is required",
		},
		{
			name: "connection string skips field checks",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{ConnectionString: "postgres://localhost/db"}
			},
		},
		{
			name:    "production requires domain",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: true,
			errMsg:  "auth0 domain is required",
		},
		{
			name: "production requires audience",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Auth0.Domain = "coffee.us.auth0.com"
			},
			wantErr: true,
			errMsg:  "api audience is required",
		},
		{
			name:    "domain without audience",
			mutate:  func(c *Config) { c.Auth0.Domain = "coffee.us.auth0.com" },
			wantErr: true,
			errMsg:  "api audience is required",
		},
		{
			name:    "none algorithm",
			mutate:  func(c *Config) { c.Auth0.Algorithms = []string{"none"} },
			wantErr: true,
			errMsg:  "not allowed",
		},
		{
			name:   "403 denial status",
			mutate: func(c *Config) { c.Auth0.PermissionDeniedStatus = http.StatusForbidden },
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Auth0.JWKSMaxRetries = -1 },
			wantErr: true,
			errMsg:  "jwks max retries",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsDevelopment())
		})
	}
}

func TestAuth0Config_URLs(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Auth0Config
		wantIssuer string
		wantJWKS   string
		enabled    bool
	}{
		{
			name:       "bare domain",
			cfg:        Auth0Config{Domain: "coffee.us.auth0.com"},
			wantIssuer: "https://coffee.us.auth0.com/",
			wantJWKS:   "https://coffee.us.auth0.com/.well-known/jwks.json",
			enabled:    true,
		},
		{
			name:       "domain with scheme and slash",
			cfg:        Auth0Config{Domain: "https://coffee.us.auth0.com/"},
			wantIssuer: "https://coffee.us.auth0.com/",
			wantJWKS:   "https://coffee.us.auth0.com/.well-known/jwks.json",
			enabled:    true,
		},
		{
			name:       "explicit issuer and key set",
			cfg:        Auth0Config{Issuer: "http://127.0.0.1:9999/", JWKSURL: "http://127.0.0.1:9999/jwks"},
			wantIssuer: "http://127.0.0.1:9999/",
			wantJWKS:   "http://127.0.0.1:9999/jwks",
			enabled:    true,
		},
		{
			name:       "issuer alone is not enough",
			cfg:        Auth0Config{Issuer: "http://127.0.0.1:9999/"},
			wantIssuer: "http://127.0.0.1:9999/",
			wantJWKS:   "https:///.well-known/jwks.json",
			enabled:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIssuer, tt.cfg.IssuerURL())
			assert.Equal(t, tt.wantJWKS, tt.cfg.KeySetURL())
			assert.Equal(t, tt.enabled, tt.cfg.Enabled())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 5000,
	}

	assert.Equal(t, "0.0.0.0:5000", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "RS256", []string{"RS256"}},
		{"trims", " RS256 , ES256 ", []string{"RS256", "ES256"}},
		{"empty value", "", []string{"default"}},
		{"only separators", " , ,", []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_LIST", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsList("TEST_LIST", []string{"default"}))
		})
	}
}
