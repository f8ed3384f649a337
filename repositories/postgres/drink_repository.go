package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/coffee-shop/backend/models"
	"github.com/upb/coffee-shop/backend/repositories"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// DrinkRepository implements the repositories.DrinkRepository interface
type DrinkRepository struct {
	db     *DB
	tx     *Tx
	logger *zap.Logger
}

// NewDrinkRepository creates a new drink repository
func NewDrinkRepository(db *DB, logger *zap.Logger) repositories.DrinkRepository {
	return &DrinkRepository{
		db:     db,
		logger: logger,
	}
}

func (r *DrinkRepository) executor(context.Context) Executor {
	return executorFor(r.db, r.tx)
}

// List returns all drinks ordered by ID
func (r *DrinkRepository) List(ctx context.Context) ([]*models.Drink, error) {
	query := `SELECT id, title, recipe FROM drinks ORDER BY id`

	rows, err := r.executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query drinks: %w", err)
	}
	defer rows.Close()

	drinks := make([]*models.Drink, 0)
	for rows.Next() {
		drink, err := scanDrink(rows)
		if err != nil {
			return nil, err
		}
		drinks = append(drinks, drink)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drinks: %w", err)
	}

	return drinks, nil
}

// GetByID retrieves a drink by ID
func (r *DrinkRepository) GetByID(ctx context.Context, id int64) (*models.Drink, error) {
	query := `SELECT id, title, recipe FROM drinks WHERE id = $1`

	drink, err := scanDrink(r.executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drink %d: %w", id, repositories.ErrNotFound)
		}
		return nil, err
	}

	return drink, nil
}

// Create inserts a drink and sets its ID
func (r *DrinkRepository) Create(ctx context.Context, drink *models.Drink) error {
	recipe, err := models.EncodeRecipe(drink.Recipe)
	if err != nil {
		return err
	}

	query := `INSERT INTO drinks (title, recipe) VALUES ($1, $2) RETURNING id`

	if err := r.executor(ctx).QueryRowContext(ctx, query, drink.Title, recipe).Scan(&drink.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("drink %q: %w", drink.Title, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create drink: %w", err)
	}

	r.logger.Debug("drink created", zap.Int64("id", drink.ID), zap.String("title", drink.Title))
	return nil
}

// Update replaces title and recipe of an existing drink
func (r *DrinkRepository) Update(ctx context.Context, drink *models.Drink) error {
	recipe, err := models.EncodeRecipe(drink.Recipe)
	if err != nil {
		return err
	}

	query := `UPDATE drinks SET title = $1, recipe = $2 WHERE id = $3`

	result, err := r.executor(ctx).ExecContext(ctx, query, drink.Title, recipe, drink.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("drink %q: %w", drink.Title, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to update drink: %w", err)
	}

	if err := requireRow(result, drink.ID); err != nil {
		return err
	}

	r.logger.Debug("drink updated", zap.Int64("id", drink.ID))
	return nil
}

// Delete deletes a drink
func (r *DrinkRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM drinks WHERE id = $1`

	result, err := r.executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete drink: %w", err)
	}

	if err := requireRow(result, id); err != nil {
		return err
	}

	r.logger.Debug("drink deleted", zap.Int64("id", id))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *DrinkRepository) WithTx(tx repositories.Transaction) repositories.DrinkRepository {
	bound := &DrinkRepository{
		db:     r.db,
		logger: r.logger,
	}
	if pgTx, ok := tx.(*Tx); ok {
		bound.tx = pgTx
	}
	return bound
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDrink(row rowScanner) (*models.Drink, error) {
	var (
		drink  models.Drink
		recipe string
	)
	if err := row.Scan(&drink.ID, &drink.Title, &recipe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan drink: %w", err)
	}

	decoded, err := models.DecodeRecipe(recipe)
	if err != nil {
		return nil, fmt.Errorf("drink %d: %w", drink.ID, err)
	}
	drink.Recipe = decoded

	return &drink, nil
}

func requireRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("drink %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
