package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/coffee-shop/backend/config"
	"github.com/upb/coffee-shop/backend/models"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an existing pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

const drinksSchema = `
	CREATE TABLE IF NOT EXISTS drinks (
		id SERIAL PRIMARY KEY,
		title VARCHAR(80) NOT NULL UNIQUE,
		recipe TEXT NOT NULL
	);
`

// InitSchema creates the drinks table when missing
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, drinksSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// ResetSchema drops every drink, recreates the table and inserts the seed rows.
// All existing data is lost.
func (db *DB) ResetSchema(ctx context.Context) error {
	tx, err := db.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.sqlTx.ExecContext(ctx, `DROP TABLE IF EXISTS drinks`); err != nil {
		return fmt.Errorf("failed to drop drinks table: %w", err)
	}
	if _, err := tx.sqlTx.ExecContext(ctx, drinksSchema); err != nil {
		return fmt.Errorf("failed to create drinks table: %w", err)
	}

	for _, drink := range models.SeedDrinks() {
		recipe, err := models.EncodeRecipe(drink.Recipe)
		if err != nil {
			return err
		}
		if _, err := tx.sqlTx.ExecContext(ctx, `INSERT INTO drinks (title, recipe) VALUES ($1, $2)`, drink.Title, recipe); err != nil {
			return fmt.Errorf("failed to seed drink %q: %w", drink.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	db.logger.Warn("database schema reset; all drinks replaced by seed data")
	return nil
}
