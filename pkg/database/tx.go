package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

type afterCommitKey struct{}

type afterCommitHooks struct {
	fns []func()
}

// AfterCommit defers fn until the outermost transaction carried by ctx has
// committed. Outside a transaction fn runs immediately. A rolled back
// transaction never runs its hooks, so side effects like event publishing
// stay consistent with what was actually persisted.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn()
}

// WithTx executes fn within a database transaction. The transaction is stored
// in the context so that the query helpers below route through it. If the
// context already carries a transaction, fn joins it instead of opening a
// nested one, which lets services compose multi-step operations into a single
// atomic unit.
//
// Usage in services:
//
//	err := s.db.WithTx(ctx, func(ctx context.Context) error {
//	    if err := s.stock.Adjust(ctx, ...); err != nil { return err }
//	    return s.sales.Insert(ctx, ...)
//	})
func (db *DB) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	hooks := &afterCommitHooks{}
	err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		txCtx = context.WithValue(txCtx, afterCommitKey{}, hooks)
		return fn(txCtx)
	})
	if err != nil {
		return err
	}

	for _, hook := range hooks.fns {
		hook()
	}
	return nil
}

// TxFromContext extracts the ambient transaction from the context if present
func TxFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// The following helpers shadow the embedded sqlx.DB methods so that
// repositories transparently participate in an ambient transaction.

func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return db.DB.GetContext(ctx, dest, query, args...)
}

func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return db.DB.SelectContext(ctx, dest, query, args...)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.DB.ExecContext(ctx, query, args...)
}

func (db *DB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.QueryRowxContext(ctx, query, args...)
	}
	return db.DB.QueryRowxContext(ctx, query, args...)
}

func (db *DB) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.QueryxContext(ctx, query, args...)
	}
	return db.DB.QueryxContext(ctx, query, args...)
}

func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.NamedExecContext(ctx, query, arg)
	}
	return db.DB.NamedExecContext(ctx, query, arg)
}
