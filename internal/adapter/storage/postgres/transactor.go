package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.LedgerTransactor using the connection pool.
// Every atomic ledger block runs on a tx obtained here; Postgres WAL gives
// the all-or-nothing durability the ledger requires.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
