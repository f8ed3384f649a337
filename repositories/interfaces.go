package repositories

import (
	"context"
	"errors"

	"github.com/upb/coffee-shop/backend/models"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager opens database transactions
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction is finished by exactly one Commit or Rollback.
// Rollback after Commit is a no-op.
type Transaction interface {
	Commit() error
	Rollback() error
}

// DrinkRepository handles drink data operations
type DrinkRepository interface {
	// List returns all drinks ordered by ID
	List(ctx context.Context) ([]*models.Drink, error)

	// GetByID retrieves a drink by ID
	GetByID(ctx context.Context, id int64) (*models.Drink, error)

	// Create inserts a drink and sets its ID
	Create(ctx context.Context, drink *models.Drink) error

	// Update replaces title and recipe of an existing drink
	Update(ctx context.Context, drink *models.Drink) error

	// Delete deletes a drink
	Delete(ctx context.Context, id int64) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) DrinkRepository
}

// Repositories holds all repository instances
type Repositories struct {
	Drinks DrinkRepository
}
