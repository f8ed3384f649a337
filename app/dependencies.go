package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/coffee-shop/backend/auth0"
	"github.com/upb/coffee-shop/backend/config"
	"github.com/upb/coffee-shop/backend/internal/observability"
	"github.com/upb/coffee-shop/backend/middleware"
	"github.com/upb/coffee-shop/backend/repositories"
	"github.com/upb/coffee-shop/backend/repositories/postgres"
	"github.com/upb/coffee-shop/backend/services/drinks"
	"go.uber.org/zap"
)

// ErrAuthNotConfigured is returned for every protected request when no issuer is configured
var ErrAuthNotConfigured = errors.New("authorization not configured")

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	DB       *postgres.DB
	Logger   *zap.Logger
	Registry *prometheus.Registry // nil when metrics are disabled

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Drinks    repositories.DrinkRepository
	TxManager repositories.TransactionManager

	// Services
	DrinkService *drinks.Service

	// Auth
	AuthMetrics    *auth0.Metrics
	Gate           *auth0.Gate // nil when no issuer is configured
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies connects to PostgreSQL and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires dependencies around an already opened database
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := factory.PrepareSchema(ctx, cfg.Database.ResetOnStart); err != nil {
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initMetrics(cfg)

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Drinks = repos.Drinks
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	d.DrinkService = drinks.NewService(d.Drinks, d.TxManager, d.Logger.Named("drinks"))
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		return
	}
	d.Registry = observability.NewRegistry()
	d.AuthMetrics = auth0.NewMetrics(cfg.Observability.MetricsNamespace, d.Registry)
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	logger := d.Logger.Named("auth0")

	if !cfg.Auth0.Enabled() {
		logger.Warn("auth0 not configured, protected endpoints will reject every request")
		d.AuthMiddleware = middleware.NewAuthMiddleware(rejectAllAuthorizer{}, logger)
		return nil
	}

	verifier, err := auth0.NewVerifier(auth0.VerifierConfig{
		Issuer:     cfg.Auth0.IssuerURL(),
		Audience:   cfg.Auth0.Audience,
		Algorithms: cfg.Auth0.Algorithms,
		Leeway:     cfg.Auth0.Leeway,
	})
	if err != nil {
		return err
	}

	var resolver auth0.KeyResolver = auth0.NewHTTPKeyResolver(auth0.ResolverConfig{
		URL:        cfg.Auth0.KeySetURL(),
		Timeout:    cfg.Auth0.JWKSTimeout,
		MaxRetries: cfg.Auth0.JWKSMaxRetries,
		Metrics:    d.AuthMetrics,
	}, logger)
	if cfg.Auth0.JWKSCacheTTL > 0 {
		resolver = auth0.NewCachingKeyResolver(resolver, cfg.Auth0.JWKSCacheTTL, logger)
	}

	d.Gate = auth0.NewGate(resolver, verifier, logger,
		auth0.WithMetrics(d.AuthMetrics),
		auth0.WithPermissionDeniedStatus(cfg.Auth0.PermissionDeniedStatus),
	)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Gate, logger)

	logger.Info("authorization gate initialized",
		zap.String("issuer", verifier.Issuer()),
		zap.String("audience", verifier.Audience()),
		zap.String("jwks_url", cfg.Auth0.KeySetURL()),
		zap.Duration("jwks_cache_ttl", cfg.Auth0.JWKSCacheTTL))
	return nil
}

// rejectAllAuthorizer denies every request (used when no issuer is configured)
type rejectAllAuthorizer struct{}

func (rejectAllAuthorizer) Authorize(*http.Request, string) (*auth0.Claims, error) {
	return nil, ErrAuthNotConfigured
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
