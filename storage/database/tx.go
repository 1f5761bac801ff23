package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// Transactor runs core.TxFunc inside a database transaction.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise, or when fn panics.
// The exec handed to fn is a *sqlx.Tx.
func (t *Transactor) InTx(ctx context.Context, fn core.TxFunc) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewPersistenceError("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return core.NewPersistenceError("committing transaction", err)
	}
	return nil
}
