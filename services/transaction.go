package services

import (
	"context"
	"fmt"

	"github.com/upb/coffee-shop/backend/repositories"
)

// RunInTx calls fn with a fresh transaction and returns its result.
// The transaction commits only when fn returns a nil error; an error or a
// panic inside fn rolls it back.
func RunInTx[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (result T, err error) {
	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
	}()

	if result, err = fn(ctx, tx); err != nil {
		return result, err
	}

	finished = true
	if err = tx.Commit(); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
