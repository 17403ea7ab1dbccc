package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// TxFunc is the body of a read or write transaction.
type TxFunc func(ctx context.Context, tx bun.Tx) error

var errNotInitialized = errors.New("db is not initialized")

// WithWriteTx runs fn in an immediate-lock write transaction. Returning an
// error from fn rolls the transaction back.
func (db *DB) WithWriteTx(ctx context.Context, fn TxFunc) error {
	if db == nil || db.W == nil {
		return fmt.Errorf("write %w", errNotInitialized)
	}
	return db.W.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// WithReadTx runs fn in a read-only transaction on the pooled reader.
func (db *DB) WithReadTx(ctx context.Context, fn TxFunc) error {
	if db == nil || db.R == nil {
		return fmt.Errorf("read %w", errNotInitialized)
	}
	return db.R.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}
