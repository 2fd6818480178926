// Package repository holds the transaction plumbing shared by every
// persistence-layer subpackage (media, user, album, tag). Each
// subpackage owns its own SQL and its own repository type; this file
// only owns the cross-cutting "run this under one transaction" idiom.
package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repository methods
// can be handed either a pooled connection or an in-flight transaction
// without changing signature.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxFn is the unit of work run under WithTransaction. Returning an
// error rolls back; a panic rolls back and re-panics.
type TxFn func(tx *sql.Tx) error

// WithTransaction runs fn inside a single database transaction,
// committing on success and rolling back on error or panic. Ingestion
// (C5) and Enrichment (C6, which writes the info merge and Promotion's
// Location update) both depend on this to keep their multi-row writes
// atomic.
func WithTransaction(ctx context.Context, db *sql.DB, log *zap.Logger, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil && log != nil {
				log.Error("rollback after panic failed", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && log != nil {
			log.Error("rollback failed", zap.Error(rbErr), zap.NamedError("original", err))
		}
		return err
	}

	return tx.Commit()
}
