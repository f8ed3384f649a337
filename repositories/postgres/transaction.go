package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/coffee-shop/backend/repositories"
	"go.uber.org/zap"
)

// Executor runs statements against either the pool or an open transaction
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxManager opens transactions on the drinks database
type TxManager struct {
	db *DB
}

// NewTransactionManager returns a manager bound to db
func NewTransactionManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return m.db.begin(ctx)
}

// Tx wraps a *sql.Tx and remembers whether it has been finished
type Tx struct {
	sqlTx  *sql.Tx
	logger *zap.Logger
	done   bool
}

func (db *DB) begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{sqlTx: sqlTx, logger: db.logger}, nil
}

func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// executorFor returns tx when the caller is bound to one, otherwise the pool
func executorFor(db *DB, tx *Tx) Executor {
	if tx != nil {
		return tx.sqlTx
	}
	return db.DB
}
